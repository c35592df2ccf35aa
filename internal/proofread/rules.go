package proofread

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nerdneilsfield/mail-translator/internal/config"
)

// Replacement 一条替换规则
type Replacement struct {
	From string
	To   string
}

// taiwanTerms 台湾用语
var taiwanTerms = []Replacement{
	{"消息", "訊息"},
	{"信息", "資訊"},
	{"文件", "檔案"},
	{"软件", "軟體"},
	{"硬件", "硬體"},
	{"网络", "網路"},
	{"网站", "網站"},
	{"计算机", "電腦"},
	{"手机", "手機"},
	{"程序", "程式"},
	{"数据", "資料"},
	{"视频", "影片"},
	{"音频", "音訊"},
}

var punctuationFixes = []Replacement{
	{"。。", "。"},
	{"？？", "？"},
	{"！！", "！"},
	{"，，", "，"},
}

var grammarFixes = []Replacement{
	{"的的", "的"},
	{"了了", "了"},
	{"在在", "在"},
	{"是是", "是"},
}

var spaceAroundPunct = regexp.MustCompile(`[\s\p{Zs}]*([，。！？；：])[\s\p{Zs}]*`)

// glossaryTerms 将词表转换为替换规则，较长的词优先
func glossaryTerms(g *config.Glossary) []Replacement {
	if g == nil {
		return nil
	}
	terms := make([]Replacement, 0, len(g.Terms))
	for from, to := range g.Terms {
		if from == "" || from == to {
			continue
		}
		terms = append(terms, Replacement{From: from, To: to})
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i].From) != len(terms[j].From) {
			return len(terms[i].From) > len(terms[j].From)
		}
		return terms[i].From < terms[j].From
	})
	return terms
}

// applyReplacements 依次替换，每条生效的规则记录一条改进说明
func applyReplacements(text string, rules []Replacement, label string, improvements []string) (string, []string) {
	for _, r := range rules {
		if strings.Contains(text, r.From) {
			text = strings.ReplaceAll(text, r.From, r.To)
			improvements = append(improvements, fmt.Sprintf("%s：%s → %s", label, r.From, r.To))
		}
	}
	return text, improvements
}

// normalizeSpacing 合并空白并去掉全形标点前后的空格
func normalizeSpacing(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return spaceAroundPunct.ReplaceAllString(text, "$1")
}
