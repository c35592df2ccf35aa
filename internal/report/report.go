// Package report 生成翻译报告 Markdown 文件
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nerdneilsfield/mail-translator/internal/mail"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	fileNameLayout  = "20060102_150405"
)

const template = `# 📧 郵件翻譯報告

## 📋 郵件資訊

- **主旨**: %s
- **寄件者**: %s
- **日期**: %s
- **翻譯時間**: %s

---

## 📝 內容 (繁體中文)

%s

---

*由郵件翻譯器自動生成*
`

// Render 渲染报告内容
func Render(msg *mail.Message, translated string, at time.Time) string {
	return fmt.Sprintf(template, msg.Subject, msg.Sender, msg.Date, at.Format(timestampLayout), translated)
}

// FileName 返回报告文件名
func FileName(at time.Time) string {
	return "email_translation_" + at.Format(fileNameLayout) + ".md"
}

// Writer 将报告写入输出目录
type Writer struct {
	dir string
	now func() time.Time
}

// Option 报告选项
type Option func(*Writer)

// WithClock 设置时钟
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter 创建报告写入器，dir 为空时写入当前目录
func NewWriter(dir string, opts ...Option) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	w := &Writer{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir 返回输出目录
func (w *Writer) Dir() string {
	return w.dir
}

// Write 写入报告并返回文件路径
func (w *Writer) Write(msg *mail.Message, translated string) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("report: message is nil")
	}

	at := w.now()
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: failed to create output directory: %w", err)
	}

	path := filepath.Join(w.dir, FileName(at))
	if err := os.WriteFile(path, []byte(Render(msg, translated, at)), 0o644); err != nil {
		return "", fmt.Errorf("report: failed to write %s: %w", path, err)
	}
	return path, nil
}
