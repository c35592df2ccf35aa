package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Glossary 校对用词表，键为需要替换的词，值为替换后的词
type Glossary struct {
	SourceLang string            `toml:"source_lang" yaml:"source_lang"`
	TargetLang string            `toml:"target_lang" yaml:"target_lang"`
	Terms      map[string]string `toml:"terms" yaml:"terms"`
}

// NewGlossary 创建词表
func NewGlossary(sourceLang, targetLang string, terms map[string]string) *Glossary {
	return &Glossary{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Terms:      terms,
	}
}

// LoadGlossary 按扩展名加载 .toml 或 .yaml/.yml 词表
func LoadGlossary(path string) (*Glossary, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("glossary file not found: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	glossary := &Glossary{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(content, glossary)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, glossary)
	default:
		return nil, fmt.Errorf("unsupported glossary format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal glossary: %w", err)
	}
	if len(glossary.Terms) == 0 {
		return nil, fmt.Errorf("glossary file has no terms: %s", path)
	}
	return glossary, nil
}
