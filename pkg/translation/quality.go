package translation

import (
	"strings"
	"unicode/utf8"
)

// 乱码和方块字符
var invalidChars = []rune{'\uFFFD', '■', '□', '▪', '▫'}

// ContainsInvalidChars 检查译文是否含有替换字符或方块字符
func ContainsInvalidChars(text string) bool {
	for _, r := range text {
		if r >= 0x2588 && r <= 0x259F {
			return true
		}
		for _, bad := range invalidChars {
			if r == bad {
				return true
			}
		}
	}
	return false
}

// ScoreTranslation 为候选译文评分，maxLen 为所有候选中的最大长度
func ScoreTranslation(candidate string, maxLen int) float64 {
	if strings.TrimSpace(candidate) == "" {
		return 0
	}

	score := 0.0
	length := utf8.RuneCountInString(candidate)

	// 长度接近最长候选
	if maxLen > 0 {
		ratio := float64(length) / float64(maxLen)
		if ratio >= 0.8 && ratio <= 1.2 {
			score += 2
		}
	}

	// 含中文标点
	if strings.ContainsAny(candidate, "，。！？") {
		score++
	}

	// 字符多样性
	unique := make(map[rune]struct{})
	for _, r := range candidate {
		unique[r] = struct{}{}
	}
	score += float64(len(unique)) / float64(length) * 2

	if !ContainsInvalidChars(candidate) {
		score += 2
	}

	return score
}

// PickBest 返回得分最高的候选译文，得分相同时取靠前的
func PickBest(candidates []string) (string, float64) {
	maxLen := 0
	for _, c := range candidates {
		if n := utf8.RuneCountInString(c); n > maxLen {
			maxLen = n
		}
	}

	best, bestScore := "", -1.0
	for _, c := range candidates {
		if score := ScoreTranslation(c, maxLen); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}
