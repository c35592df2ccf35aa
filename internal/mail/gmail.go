package mail

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailConfig Gmail API 配置
type GmailConfig struct {
	CredentialsFile string
	TokenFile       string
	MaxResults      int64
	// Prompt 授权链接输出位置，Input 授权码读取来源
	Prompt io.Writer
	Input  io.Reader
	// ClientOptions 额外的 API 选项
	ClientOptions []option.ClientOption
}

// GmailSource 通过 Gmail API 读取邮件
type GmailSource struct {
	config  GmailConfig
	service *gmail.Service
	logger  *zap.Logger
}

// NewGmailSource 创建 Gmail 邮件来源
func NewGmailSource(config GmailConfig, logger *zap.Logger) *GmailSource {
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	if config.Prompt == nil {
		config.Prompt = os.Stdout
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GmailSource{config: config, logger: logger}
}

// NewGmailSourceWithService 使用已创建的服务
func NewGmailSourceWithService(service *gmail.Service, logger *zap.Logger) *GmailSource {
	s := NewGmailSource(GmailConfig{}, logger)
	s.service = service
	return s
}

// Authenticate 加载或刷新 OAuth 令牌；没有令牌时走离线授权流程
func (s *GmailSource) Authenticate(ctx context.Context) error {
	if s.service != nil {
		return nil
	}

	b, err := os.ReadFile(s.config.CredentialsFile)
	if err != nil {
		return fmt.Errorf("%w: cannot read credentials file %s: %v", ErrAuth, s.config.CredentialsFile, err)
	}

	conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return fmt.Errorf("%w: cannot parse credentials file: %v", ErrAuth, err)
	}

	tok, err := tokenFromFile(s.config.TokenFile)
	if err != nil {
		s.logger.Info("no saved token, starting consent flow", zap.String("token_file", s.config.TokenFile))
		tok, err = s.tokenFromWeb(ctx, conf)
		if err != nil {
			return err
		}
		if err := saveToken(s.config.TokenFile, tok); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
	}

	ts := conf.TokenSource(ctx, tok)
	fresh, err := ts.Token()
	if err != nil {
		return fmt.Errorf("%w: token refresh failed: %v", ErrAuth, err)
	}
	if fresh.AccessToken != tok.AccessToken {
		s.logger.Info("token refreshed")
		if err := saveToken(s.config.TokenFile, fresh); err != nil {
			s.logger.Warn("failed to save refreshed token", zap.Error(err))
		}
	}

	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, s.config.ClientOptions...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gmail service: %w", err)
	}
	s.service = service
	return nil
}

// tokenFromWeb 打印授权链接并读取授权码
func (s *GmailSource) tokenFromWeb(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(s.config.Prompt, "Open the following link in your browser and authorize access:\n%s\n\nPaste the authorization code: ", authURL)

	scanner := bufio.NewScanner(s.config.Input)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: no authorization code provided", ErrAuth)
	}
	code := strings.TrimSpace(scanner.Text())
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrAuth)
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", ErrAuth, err)
	}
	return tok, nil
}

// Search 按条件搜索邮件
func (s *GmailSource) Search(ctx context.Context, criteria Criteria) ([]string, error) {
	if s.service == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrAuth)
	}

	query := BuildQuery(criteria)
	s.logger.Debug("searching gmail", zap.String("query", query))

	resp, err := s.service.Users.Messages.List("me").
		Q(query).
		MaxResults(s.config.MaxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyAPIError("search", err)
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Fetch 读取原始邮件并解析
func (s *GmailSource) Fetch(ctx context.Context, id string) (*Message, error) {
	if s.service == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrAuth)
	}

	resp, err := s.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError("fetch", err)
	}

	raw, err := decodeRaw(resp.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", id, err)
	}

	msg, err := ParseRaw(raw)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// Close 无需释放资源
func (s *GmailSource) Close() error {
	return nil
}

func decodeRaw(raw string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(raw); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
}

func classifyAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: gmail %s: %v", ErrAuth, op, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: gmail %s: %v", ErrNotFound, op, err)
		}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: gmail %s: %v", ErrAuth, op, err)
	}
	return fmt.Errorf("gmail %s failed: %w", op, err)
}

// tokenFromFile 从文件读取token
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// saveToken 保存token到文件
func saveToken(path string, token *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
