package translation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/width"
)

// URLKind 链接类别
type URLKind int

const (
	// KindGeneral 普通链接
	KindGeneral URLKind = iota
	// KindImage 图片链接
	KindImage
)

// String 返回类别名称
func (k URLKind) String() string {
	if k == KindImage {
		return "image"
	}
	return "link"
}

// URLEntry 源文本中的一个不重复链接
type URLEntry struct {
	URL     string
	Kind    URLKind
	Ordinal int
}

// Placeholder 受保护文本中代替链接的占位符
type Placeholder struct {
	Kind  URLKind
	Index int
}

// String 返回占位符的规范写法
func (p Placeholder) String() string {
	if p.Kind == KindImage {
		return fmt.Sprintf("[IMAGE_%d]", p.Index)
	}
	return fmt.Sprintf("[LINK_%d]", p.Index)
}

// Reference 参考列表中的一项
type Reference struct {
	Number int
	Entry  URLEntry
}

// ReferenceList 按显示编号排列的参考列表
type ReferenceList []Reference

// URLs 返回列表中的链接
func (l ReferenceList) URLs() []string {
	urls := make([]string, 0, len(l))
	for _, ref := range l {
		urls = append(urls, ref.Entry.URL)
	}
	return urls
}

// numbers 返回序号到显示编号的映射
func (l ReferenceList) numbers() map[int]int {
	numbers := make(map[int]int, len(l))
	for _, ref := range l {
		numbers[ref.Entry.Ordinal] = ref.Number
	}
	return numbers
}

// 参考区块标题
const (
	ImageSectionHeading = "### 🖼️ 圖片連結"
	LinkSectionHeading  = "### 📎 相關連結"
)

const (
	urlChar       = "[^\\s<>\"{}|\\\\^`\\[\\]]"
	// 链接末尾不计入链接的标点
	trailingPunct = ".,;:!?)'"
)

var (
	urlPattern  = regexp2.MustCompile(`https?://`+urlChar+`+`, regexp2.IgnoreCase)
	imageSuffix = regexp.MustCompile(`(?i)\.(?:jpe?g|png|gif|bmp|webp|svg)(?:\?` + urlChar + `*)?$`)

	disallowedChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:()\-'"@/\[\]]`)
)

// placeholderRule 一种占位符写法
type placeholderRule struct {
	pattern *regexp.Regexp
	kind    URLKind
	// 编号减去 base 得到序号
	base int
}

// 规范写法从 0 开始编号，本地化写法与显示编号一致从 1 开始
var placeholderRules = []placeholderRule{
	{regexp.MustCompile(`\[\s*(?:LINK|Link|link)\s*_\s*([0-9０-９]+)\s*\]`), KindGeneral, 0},
	{regexp.MustCompile(`\[\s*(?:IMAGE|Image|image)\s*_\s*([0-9０-９]+)\s*\]`), KindImage, 0},
	{regexp.MustCompile(`[(（]\s*(?:連結|链接)\s*([0-9０-９]+)\s*[)）]`), KindGeneral, 1},
	{regexp.MustCompile(`[(（]\s*(?:圖片|图片)\s*([0-9０-９]+)\s*[)）]`), KindImage, 1},
	{regexp.MustCompile(`[\[【]\s*(?:連結|链接)\s*([0-9０-９]+)\s*[\]】]`), KindGeneral, 1},
	{regexp.MustCompile(`[\[【]\s*(?:圖片|图片)\s*([0-9０-９]+)\s*[\]】]`), KindImage, 1},
}

// ProtectLinks 将文本中的链接替换为占位符，返回受保护文本、普通链接表和图片链接表。
// 原文中形似占位符的片段会先被改写，不会被当作占位符还原。
func ProtectLinks(text string) (string, []string, []string) {
	tables := map[URLKind]*[]string{KindGeneral: {}, KindImage: {}}
	ordinals := map[URLKind]map[string]int{KindGeneral: {}, KindImage: {}}

	runes := []rune(text)
	var b strings.Builder
	last := 0

	m, err := urlPattern.FindRunesMatch(runes)
	for ; m != nil && err == nil; m, err = urlPattern.FindNextMatch(m) {
		url, tail := trimURL(m.String())

		kind := KindGeneral
		if imageSuffix.MatchString(url) {
			kind = KindImage
		}
		ordinal, ok := ordinals[kind][url]
		if !ok {
			table := tables[kind]
			ordinal = len(*table)
			ordinals[kind][url] = ordinal
			*table = append(*table, url)
		}

		b.WriteString(neutralizePlaceholders(string(runes[last:m.Index])))
		b.WriteString(" " + Placeholder{Kind: kind, Index: ordinal}.String() + " ")
		b.WriteString(neutralizePlaceholders(tail))
		last = m.Index + m.Length
	}
	// 未设置匹配超时，err 恒为 nil
	b.WriteString(neutralizePlaceholders(string(runes[last:])))

	return normalizeProtected(b.String()), *tables[KindGeneral], *tables[KindImage]
}

// trimURL 去掉链接末尾的标点；右括号仅在括号不配对时去掉
func trimURL(raw string) (url string, tail string) {
	// 保留协议后至少一个字符
	floor := strings.Index(raw, "://") + len("://") + 1
	open := strings.Count(raw, "(")
	closed := strings.Count(raw, ")")

	end := len(raw)
	for end > floor {
		c := raw[end-1]
		if !strings.ContainsRune(trailingPunct, rune(c)) {
			break
		}
		if c == ')' {
			if closed <= open {
				break
			}
			closed--
		}
		end--
	}
	return raw[:end], raw[end:]
}

// neutralizePlaceholders 改写文本中形似占位符的片段，在标签与编号之间插入连字符
func neutralizePlaceholders(text string) string {
	for _, rule := range placeholderRules {
		text = rule.pattern.ReplaceAllStringFunc(text, func(token string) string {
			loc := rule.pattern.FindStringSubmatchIndex(token)
			label := strings.TrimRightFunc(token[:loc[2]], func(r rune) bool {
				return r == '_' || unicode.IsSpace(r)
			})
			return label + "-" + token[loc[2]:]
		})
	}
	return text
}

// normalizeProtected 合并空白并清理不在允许集合内的字符
func normalizeProtected(text string) string {
	text = collapseWhitespace(text)
	text = disallowedChars.ReplaceAllString(text, " ")
	return collapseWhitespace(text)
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// placeholderMatch 文本中识别到的一个占位符
type placeholderMatch struct {
	start   int
	end     int
	kind    URLKind
	ordinal int
}

// scanPlaceholders 按规则表扫描占位符，重叠的匹配只保留靠前的一个
func scanPlaceholders(text string) []placeholderMatch {
	var matches []placeholderMatch
	for _, rule := range placeholderRules {
		for _, loc := range rule.pattern.FindAllStringSubmatchIndex(text, -1) {
			ordinal := parseOrdinal(text[loc[2]:loc[3]])
			if ordinal >= 0 {
				ordinal -= rule.base
			}
			matches = append(matches, placeholderMatch{
				start:   loc[0],
				end:     loc[1],
				kind:    rule.kind,
				ordinal: ordinal,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].start < matches[j].start
	})

	kept := matches[:0]
	end := -1
	for _, m := range matches {
		if m.start < end {
			continue
		}
		kept = append(kept, m)
		end = m.end
	}
	return kept
}

// parseOrdinal 解析编号，全角数字先折叠为半角；无法解析时返回 -1
func parseOrdinal(digits string) int {
	n, err := strconv.Atoi(width.Narrow.String(digits))
	if err != nil {
		return -1
	}
	return n
}

// ScanPlaceholders 返回文本中普通链接和图片占位符的序号，按首次出现排列
func ScanPlaceholders(text string) (links []int, images []int) {
	seen := map[URLKind]map[int]bool{KindGeneral: {}, KindImage: {}}
	for _, m := range scanPlaceholders(text) {
		if seen[m.kind][m.ordinal] {
			continue
		}
		seen[m.kind][m.ordinal] = true
		if m.kind == KindImage {
			images = append(images, m.ordinal)
		} else {
			links = append(links, m.ordinal)
		}
	}
	return links, images
}

// displayNumbers 为存活且有效的序号分配从 1 开始的连续编号
func displayNumbers(matches []placeholderMatch, kind URLKind, size int) map[int]int {
	valid := make(map[int]bool)
	for _, m := range matches {
		if m.kind == kind && m.ordinal >= 0 && m.ordinal < size {
			valid[m.ordinal] = true
		}
	}

	ordinals := make([]int, 0, len(valid))
	for ordinal := range valid {
		ordinals = append(ordinals, ordinal)
	}
	sort.Ints(ordinals)

	numbers := make(map[int]int, len(ordinals))
	for i, ordinal := range ordinals {
		numbers[ordinal] = i + 1
	}
	return numbers
}

func referenceList(numbers map[int]int, urls []string, kind URLKind) ReferenceList {
	list := make(ReferenceList, 0, len(numbers))
	for ordinal, number := range numbers {
		list = append(list, Reference{
			Number: number,
			Entry:  URLEntry{URL: urls[ordinal], Kind: kind, Ordinal: ordinal},
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	return list
}

// BuildReferences 根据译文中存活的占位符构建普通链接和图片的参考列表
func BuildReferences(text string, links, images []string) (ReferenceList, ReferenceList) {
	matches := scanPlaceholders(text)
	return referenceList(displayNumbers(matches, KindGeneral, len(links)), links, KindGeneral),
		referenceList(displayNumbers(matches, KindImage, len(images)), images, KindImage)
}

// RestoreLinks 将译文中的占位符替换为编号标记，并在末尾附加参考区块
func RestoreLinks(translated string, links, images []string) string {
	linkRefs, imageRefs := BuildReferences(translated, links, images)
	linkNumbers, imageNumbers := linkRefs.numbers(), imageRefs.numbers()

	matches := scanPlaceholders(translated)

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(translated[last:m.start])
		last = m.end

		numbers, label := linkNumbers, "連結"
		if m.kind == KindImage {
			numbers, label = imageNumbers, "圖片"
		}
		if number, ok := numbers[m.ordinal]; ok {
			fmt.Fprintf(&b, "[%s%d]", label, number)
		} else {
			// 越界序号直接丢弃
			b.WriteString(" ")
		}
	}
	b.WriteString(translated[last:])

	result := collapseWhitespace(b.String())

	if len(imageRefs) > 0 {
		result += "\n\n" + ImageSectionHeading + "\n\n"
		for _, ref := range imageRefs {
			result += fmt.Sprintf("%d. ![圖片%d](%s)\n", ref.Number, ref.Number, ref.Entry.URL)
		}
	}

	if len(linkRefs) > 0 {
		result += "\n\n" + LinkSectionHeading + "\n\n"
		for _, ref := range linkRefs {
			result += fmt.Sprintf("%d. %s\n", ref.Number, ref.Entry.URL)
		}
	}

	return result
}

// SplitReferenceSections 将文本拆分为正文和末尾的参考区块
func SplitReferenceSections(text string) (body string, sections string) {
	cut := -1
	for _, heading := range []string{ImageSectionHeading, LinkSectionHeading} {
		if idx := strings.Index(text, "\n\n"+heading+"\n\n"); idx >= 0 && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut < 0 {
		return text, ""
	}
	return text[:cut], text[cut:]
}
