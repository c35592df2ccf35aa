package proofread

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoAPIKey 未配置 AI 密钥
var ErrNoAPIKey = errors.New("ai reviewer api key is not set")

// Reviewer AI 复核，返回模型的原始回复
type Reviewer interface {
	Review(ctx context.Context, text string) (string, error)
	Name() string
}

const (
	reviewTemperature = 0.3
	reviewMaxTokens   = 1000
)

const reviewPrompt = `
請幫我校對以下繁體中文翻譯，改善語法、用詞和流暢度，使用台灣地區的用語習慣：

原文：
%s

請提供：
1. 校對後的文本
2. 主要改進點

台灣用語要求：
- 使用「資訊」而非「信息」
- 使用「訊息」而非「消息」
- 使用「檔案」而非「文件」
- 使用「軟體」而非「軟件」
- 使用「網路」而非「網絡」
- 使用「電腦」而非「計算機」
- 使用「程式」而非「程序」
- 使用「資料」而非「數據」
- 使用「影片」而非「視頻」
- 使用繁體中文字形
- 語言自然流暢，符合台灣人說話習慣
- 保持原意不變
- 保留所有 [連結1]、[圖片1] 這類標記

請直接提供校對後的完整文本，然後列出主要改進點。
`

// BuildPrompt 生成校对提示词
func BuildPrompt(text string) string {
	return fmt.Sprintf(reviewPrompt, text)
}

var listPrefixes = []string{"1.", "2.", "3.", "-", "*"}

func hasListPrefix(line string) bool {
	for _, prefix := range listPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// ParseAIResponse 从回复中提取校对后的文本和改进点
// 找不到明确的文本段时取最长的一行，其长度须超过原文的一半
func ParseAIResponse(response, original string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")

	var (
		improved     string
		improvements []string
		section      string
	)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.Contains(line, "校對後") || strings.Contains(line, "改進後"):
			section = "text"
		case strings.Contains(line, "改進點") || strings.Contains(line, "主要改進"):
			section = "improvements"
		case section == "text" && !hasListPrefix(line):
			// 跳过标题行
			if utf8.RuneCountInString(line) > 10 {
				improved = line
			}
		case section == "improvements" && hasListPrefix(line):
			improvements = append(improvements, line)
		}
	}

	if improved == "" {
		longest := ""
		for _, line := range lines {
			if utf8.RuneCountInString(line) > utf8.RuneCountInString(longest) {
				longest = line
			}
		}
		if float64(utf8.RuneCountInString(longest)) > float64(utf8.RuneCountInString(original))*0.5 {
			improved = strings.TrimSpace(longest)
		}
	}

	return improved, improvements
}
