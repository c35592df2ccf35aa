package mail

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"golang.org/x/net/html/charset"
)

func init() {
	if message.CharsetReader == nil {
		message.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
			return charset.NewReaderLabel(label, input)
		}
	}
}

// 按块级元素换行
const blockSelector = "p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, table, section, article, header, footer"

// ParseMessage 解析 RFC 5322 邮件，正文优先取第一个 text/plain 部分，否则将 text/html 转为纯文本
func ParseMessage(r io.Reader) (*Message, error) {
	mr, err := gomail.CreateReader(r)
	if mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	msg := &Message{
		Sender: decodeHeader(mr.Header, "From"),
		Date:   strings.TrimSpace(mr.Header.Get("Date")),
	}
	if subject, err := mr.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(mr.Header.Get("Subject"))
	}

	var plain, htmlBody string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) || message.IsUnknownEncoding(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := h.ContentType()
		mediaType = strings.ToLower(mediaType)
		if mediaType == "" {
			mediaType = "text/plain"
		}

		switch {
		case mediaType == "text/plain" && plain == "":
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read text part: %w", err)
			}
			plain = strings.TrimSpace(normalizeNewlines(string(b)))
		case mediaType == "text/html" && htmlBody == "":
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read html part: %w", err)
			}
			htmlBody = string(b)
		}
		if plain != "" {
			break
		}
	}

	switch {
	case plain != "":
		msg.Body = plain
	case htmlBody != "":
		text, err := HTMLToText(htmlBody)
		if err != nil {
			return nil, err
		}
		msg.Body = text
	}

	msg.applyDefaults()
	return msg, nil
}

// ParseRaw 解析原始邮件字节
func ParseRaw(raw []byte) (*Message, error) {
	return ParseMessage(bytes.NewReader(raw))
}

func decodeHeader(h gomail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h.Get(key))
}

// HTMLToText 将 HTML 正文转为纯文本，链接与图片地址保留在文本中
func HTMLToText(source string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse html body: %w", err)
	}

	doc.Find("script, style, head, noscript").Remove()

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if isHTTPURL(src) {
			s.ReplaceWithHtml(" " + html.EscapeString(src) + " ")
		} else {
			s.Remove()
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isHTTPURL(href) {
			return
		}
		text := strings.TrimSpace(s.Text())
		switch {
		case text == "":
			s.SetText(href)
		case !strings.Contains(text, href):
			s.SetText(text + " " + href)
		}
	})

	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	return normalizeText(doc.Text()), nil
}

func isHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// normalizeText 压缩行内空白，合并连续空行
func normalizeText(s string) string {
	lines := strings.Split(normalizeNewlines(s), "\n")
	out := make([]string, 0, len(lines))
	prevBlank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		blank := line == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, line)
		prevBlank = blank
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
