package translation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// DefaultChunkSize 默认块大小（字符数）
const DefaultChunkSize = 2000

// sentenceBoundary 句末标点后接空白和大写字母处断句
var sentenceBoundary = regexp2.MustCompile(`(?<=[.!?])\s+(?=[A-Z])`, regexp2.None)

// defaultChunker 默认文本分块器实现
type defaultChunker struct {
	config ChunkConfig
}

// NewDefaultChunker 创建默认分块器
func NewDefaultChunker(size int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &defaultChunker{config: ChunkConfig{Size: size}}
}

// Chunk 将文本分块
func (c *defaultChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	// 如果文本小于块大小，直接返回
	if utf8.RuneCountInString(text) <= c.config.Size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range splitParagraphs(text) {
		if runeLen(current.String())+runeLen(para) <= c.config.Size {
			current.WriteString(para)
			current.WriteString("\n\n")
			continue
		}

		flush()

		if runeLen(para) <= c.config.Size {
			current.WriteString(para)
			current.WriteString("\n\n")
			continue
		}

		// 超长段落按句子组合
		for _, sentence := range c.splitLargeParagraph(para) {
			if runeLen(current.String())+runeLen(sentence) > c.config.Size {
				flush()
			}
			current.WriteString(sentence)
			current.WriteString(" ")
		}
	}
	flush()

	return chunks
}

// GetConfig 获取分块配置
func (c *defaultChunker) GetConfig() ChunkConfig {
	return c.config
}

// splitParagraphs 按段落分割文本
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n\n")

	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// splitSentences 按句子边界分割段落
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	m, _ := sentenceBoundary.FindRunesMatch(runes)
	for m != nil {
		if s := strings.TrimSpace(string(runes[start:m.Index])); s != "" {
			sentences = append(sentences, s)
		}
		start = m.Index + m.Length
		m, _ = sentenceBoundary.FindNextMatch(m)
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitLargeParagraph 将超长段落拆为不超过块大小的片段
func (c *defaultChunker) splitLargeParagraph(para string) []string {
	var pieces []string
	for _, sentence := range splitSentences(para) {
		if runeLen(sentence) <= c.config.Size {
			pieces = append(pieces, sentence)
			continue
		}
		pieces = append(pieces, c.forceChunk(sentence)...)
	}
	return pieces
}

// forceChunk 在空白处强制切分，找不到空白时按字符切分
func (c *defaultChunker) forceChunk(text string) []string {
	var pieces []string
	runes := []rune(text)

	for len(runes) > c.config.Size {
		cut := c.config.Size
		for i := cut; i > c.config.Size/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if s := strings.TrimSpace(string(runes[:cut])); s != "" {
			pieces = append(pieces, s)
		}
		runes = runes[cut:]
	}

	if s := strings.TrimSpace(string(runes)); s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
