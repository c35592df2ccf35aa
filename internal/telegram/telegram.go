// Package telegram 通过 Bot API 推送报告文件
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL Bot API 地址
const DefaultBaseURL = "https://api.telegram.org"

// AnnounceText 发送文件前的提示消息
const AnnounceText = "📧 郵件翻譯完成！📝 Markdown檔案如下："

// ErrDelivery 推送失败
var ErrDelivery = errors.New("telegram delivery failed")

// apiResponse Bot API 的通用响应
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Bot Telegram 机器人客户端
type Bot struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option 客户端选项
type Option func(*Bot)

// WithBaseURL 设置 API 地址
func WithBaseURL(baseURL string) Option {
	return func(b *Bot) {
		b.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient 设置 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bot) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New 创建客户端
func New(token string, opts ...Option) *Bot {
	b := &Bot{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bot) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
}

// SendMessage 发送文本消息
func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return b.do(req, "sendMessage")
}

// SendDocument 上传文件
func (b *Bot) SendDocument(ctx context.Context, chatID, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telegram: failed to open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", chatID); err != nil {
		return fmt.Errorf("telegram: failed to write form: %w", err)
	}
	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("telegram: failed to write form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("telegram: failed to read %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("telegram: failed to write form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("sendDocument"), &body)
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return b.do(req, "sendDocument")
}

// SendReport 先发送提示消息，再上传报告文件
// 提示消息失败只记录日志，文件上传失败返回 ErrDelivery
func (b *Bot) SendReport(ctx context.Context, chatID, path string) error {
	if err := b.SendMessage(ctx, chatID, AnnounceText); err != nil {
		b.logger.Warn("failed to send announcement", zap.Error(err))
	}
	if err := b.SendDocument(ctx, chatID, path); err != nil {
		return err
	}
	b.logger.Info("report delivered", zap.String("file", filepath.Base(path)))
	return nil
}

func (b *Bot) do(req *http.Request, method string) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrDelivery, method, b.redact(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to read response: %s", ErrDelivery, method, b.redact(err))
	}

	var result apiResponse
	_ = json.Unmarshal(data, &result)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.OK {
		description := result.Description
		if description == "" {
			description = strings.TrimSpace(string(data))
		}
		return fmt.Errorf("%w: %s: status %d: %s", ErrDelivery, method, resp.StatusCode, description)
	}
	return nil
}

// redact 去掉错误信息中的请求地址和令牌
func (b *Bot) redact(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	msg := err.Error()
	if b.token != "" {
		msg = strings.ReplaceAll(msg, b.token, "<token>")
	}
	return msg
}
