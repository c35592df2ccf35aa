// Package mail 从 Gmail 或 IMAP 邮箱查找并读取待翻译的邮件
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 默认搜索结果数量
const DefaultMaxResults = 10

var (
	// ErrAuth 凭证缺失、无效或授权失败
	ErrAuth = errors.New("mail authentication failed")
	// ErrNotFound 没有符合条件的邮件
	ErrNotFound = errors.New("no matching email found")
)

// Criteria 搜索条件，空字段表示不限制
type Criteria struct {
	Subject   string
	Sender    string
	DateAfter string // YYYY/MM/DD
}

// Message 读取到的邮件
type Message struct {
	ID      string
	Subject string
	Sender  string
	Date    string
	Body    string
}

// Source 邮件来源
type Source interface {
	// Authenticate 建立已授权的连接
	Authenticate(ctx context.Context) error
	// Search 返回符合条件的邮件 ID，最新的在前
	Search(ctx context.Context, criteria Criteria) ([]string, error)
	// Fetch 读取单封邮件
	Fetch(ctx context.Context, id string) (*Message, error)
	// Close 释放连接
	Close() error
}

// BuildQuery 生成 Gmail 搜索语句
func BuildQuery(c Criteria) string {
	var parts []string
	if c.Subject != "" {
		parts = append(parts, fmt.Sprintf("subject:%q", c.Subject))
	}
	if c.Sender != "" {
		parts = append(parts, "from:"+c.Sender)
	}
	if c.DateAfter != "" {
		parts = append(parts, "after:"+c.DateAfter)
	}
	if len(parts) == 0 {
		return "in:inbox"
	}
	return strings.Join(parts, " ")
}

func (m *Message) applyDefaults() {
	if strings.TrimSpace(m.Subject) == "" {
		m.Subject = "No Subject"
	}
	if strings.TrimSpace(m.Sender) == "" {
		m.Sender = "Unknown Sender"
	}
	if strings.TrimSpace(m.Date) == "" {
		m.Date = "Unknown Date"
	}
}
