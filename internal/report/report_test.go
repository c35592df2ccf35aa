package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/nerdneilsfield/mail-translator/internal/mail"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

var fixedTime = time.Date(2024, 3, 5, 9, 7, 1, 0, time.UTC)

func testMessage() *mail.Message {
	return &mail.Message{
		ID:      "m1",
		Subject: "Weekly digest",
		Sender:  "News <news@example.com>",
		Date:    "Tue, 5 Mar 2024 08:00:00 +0000",
		Body:    "Hello",
	}
}

func TestRender(t *testing.T) {
	got := Render(testMessage(), "你好 [連結1]", fixedTime)

	want := "# 📧 郵件翻譯報告\n\n" +
		"## 📋 郵件資訊\n\n" +
		"- **主旨**: Weekly digest\n" +
		"- **寄件者**: News <news@example.com>\n" +
		"- **日期**: Tue, 5 Mar 2024 08:00:00 +0000\n" +
		"- **翻譯時間**: 2024-03-05 09:07:01\n\n" +
		"---\n\n" +
		"## 📝 內容 (繁體中文)\n\n" +
		"你好 [連結1]\n\n" +
		"---\n\n" +
		"*由郵件翻譯器自動生成*\n"
	assert.Equal(t, want, got)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "email_translation_20240305_090701.md", FileName(fixedTime))
}

func TestRenderParsesAsMarkdown(t *testing.T) {
	body := translation.RestoreLinks("看 [LINK_0] 和 [IMAGE_0]", []string{"https://a.com"}, []string{"https://a.com/i.png"})
	source := []byte(Render(testMessage(), body, fixedTime))

	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var headings []string
	var images []string
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings = append(headings, string(node.Text(source)))
		case *ast.Image:
			images = append(images, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"📧 郵件翻譯報告",
		"📋 郵件資訊",
		"📝 內容 (繁體中文)",
		"🖼️ 圖片連結",
		"📎 相關連結",
	}, headings)
	assert.Equal(t, []string{"https://a.com/i.png"}, images)
}

func TestWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, WithClock(func() time.Time { return fixedTime }))

	path, err := w.Write(testMessage(), "內容")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "email_translation_20240305_090701.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Render(testMessage(), "內容", fixedTime), string(data))

	_, err = w.Write(nil, "x")
	assert.Error(t, err)

	assert.Equal(t, ".", NewWriter("").Dir())
}
