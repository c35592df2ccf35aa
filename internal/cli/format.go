package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/internal/pipeline"
)

// 主旨等长文本的显示宽度
const displayWidth = 60

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var stageLabels = map[pipeline.Stage]string{
	pipeline.StageAuthenticate: "郵箱授權",
	pipeline.StageSearch:       "搜尋郵件",
	pipeline.StageFetch:        "讀取郵件",
	pipeline.StageTranslate:    "翻譯內容",
	pipeline.StageProofread:    "校對翻譯",
	pipeline.StageReport:       "建立報告",
	pipeline.StageDeliver:      "Telegram 傳送",
	pipeline.StageHistory:      "處理記錄",
}

// printer 终端状态输出
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) title(format string, args ...interface{}) {
	titleColor.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) success(format string, args ...interface{}) {
	successColor.Fprintf(p.w, "✅ "+format+"\n", args...)
}

func (p *printer) warn(format string, args ...interface{}) {
	warnColor.Fprintf(p.w, "⚠️  "+format+"\n", args...)
}

func (p *printer) fail(format string, args ...interface{}) {
	failColor.Fprintf(p.w, "❌ "+format+"\n", args...)
}

func (p *printer) info(format string, args ...interface{}) {
	fmt.Fprintf(p.w, "💡 "+format+"\n", args...)
}

// stage 打印一个阶段的结果
func (p *printer) stage(r pipeline.StageResult) {
	label := stageLabels[r.Stage]
	if label == "" {
		label = string(r.Stage)
	}
	detail := truncate(r.Detail, displayWidth)
	elapsed := dimColor.Sprintf("(%s)", formatDuration(r.Elapsed))

	switch r.Status {
	case pipeline.StatusOK:
		successColor.Fprintf(p.w, "✅ %s", label)
	case pipeline.StatusSkipped:
		warnColor.Fprintf(p.w, "⏭️  %s", label)
	default:
		failColor.Fprintf(p.w, "❌ %s", label)
	}
	if detail != "" {
		fmt.Fprintf(p.w, " %s", detail)
	}
	fmt.Fprintf(p.w, " %s\n", elapsed)
}

// criteria 打印使用的搜索条件
func (p *printer) criteria(c config.SearchCriteria) {
	p.title("📧 使用的搜尋條件:")
	for _, field := range criteriaFields(c) {
		fmt.Fprintf(p.w, "   %s: %s\n", field[0], field[1])
	}
}

func criteriaFields(c config.SearchCriteria) [][2]string {
	var fields [][2]string
	if c.Subject != "" {
		fields = append(fields, [2]string{"subject", c.Subject})
	}
	if c.Sender != "" {
		fields = append(fields, [2]string{"sender", c.Sender})
	}
	if c.DateAfter != "" {
		fields = append(fields, [2]string{"date_after", c.DateAfter})
	}
	return fields
}

// describeCriteria 单行描述搜索条件
func describeCriteria(c config.SearchCriteria) string {
	if c.IsEmpty() {
		return "-"
	}
	parts := make([]string, 0, 3)
	for _, field := range criteriaFields(c) {
		parts = append(parts, field[0]+"="+field[1])
	}
	return strings.Join(parts, " ")
}

// truncate 按显示宽度截断，中日韩字符按两列计算
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// formatDuration 格式化耗时
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Nanoseconds())/1e6)
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}

	return fmt.Sprintf("%.1fh", d.Hours())
}

// formatTime 格式化时间
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Local().Format("2006-01-02 15:04")
}
