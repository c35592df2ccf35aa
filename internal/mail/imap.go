package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

// IMAPConfig IMAP 配置
type IMAPConfig struct {
	Server     string // host:port
	Username   string
	Password   string
	Mailbox    string
	MaxResults int
	// Insecure 为 true 时使用明文连接
	Insecure bool
}

// IMAPSource 通过 IMAP 读取邮件
type IMAPSource struct {
	config IMAPConfig
	client *client.Client
	logger *zap.Logger
}

// NewIMAPSource 创建 IMAP 邮件来源
func NewIMAPSource(config IMAPConfig, logger *zap.Logger) *IMAPSource {
	if config.Mailbox == "" {
		config.Mailbox = imap.InboxName
	}
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IMAPSource{config: config, logger: logger}
}

// Authenticate 连接、登录并选择邮箱
func (s *IMAPSource) Authenticate(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	if s.config.Username == "" || s.config.Password == "" {
		return fmt.Errorf("%w: imap username or password is not set", ErrAuth)
	}

	var (
		c   *client.Client
		err error
	)
	if s.config.Insecure {
		c, err = client.Dial(s.config.Server)
	} else {
		host, _, splitErr := net.SplitHostPort(s.config.Server)
		if splitErr != nil {
			host = s.config.Server
		}
		c, err = client.DialTLS(s.config.Server, &tls.Config{ServerName: host})
	}
	if err != nil {
		return fmt.Errorf("imap dial %s: %w", s.config.Server, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(s.config.Username, s.config.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("%w: imap login: %v", ErrAuth, err)
	}
	if _, err := c.Select(s.config.Mailbox, true); err != nil {
		_ = c.Logout()
		return fmt.Errorf("imap select %s: %w", s.config.Mailbox, err)
	}

	s.client = c
	s.logger.Debug("imap connected", zap.String("server", s.config.Server), zap.String("mailbox", s.config.Mailbox))
	return nil
}

// buildSearchCriteria 将条件映射为 SUBJECT/FROM/SINCE，并排除已删除的邮件
func buildSearchCriteria(c Criteria) (*imap.SearchCriteria, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}
	if c.Subject != "" {
		criteria.Header.Add("Subject", c.Subject)
	}
	if c.Sender != "" {
		criteria.Header.Add("From", c.Sender)
	}
	if c.DateAfter != "" {
		since, err := time.Parse("2006/01/02", c.DateAfter)
		if err != nil {
			return nil, fmt.Errorf("invalid date_after %q: %w", c.DateAfter, err)
		}
		criteria.Since = since
	}
	return criteria, nil
}

// Search 按条件搜索，返回 UID，最新的在前
func (s *IMAPSource) Search(ctx context.Context, c Criteria) ([]string, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrAuth)
	}

	criteria, err := buildSearchCriteria(c)
	if err != nil {
		return nil, err
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, BuildQuery(c))
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > s.config.MaxResults {
		uids = uids[:s.config.MaxResults]
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// Fetch 按 UID 读取邮件
func (s *IMAPSource) Fetch(ctx context.Context, id string) (*Message, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: not authenticated", ErrAuth)
	}

	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid imap uid %q: %w", id, err)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var fetched *imap.Message
	for m := range messages {
		if fetched == nil {
			fetched = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch %s: %w", id, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("%w: uid %s", ErrNotFound, id)
	}

	body := fetched.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("imap fetch %s: server returned no body", id)
	}

	msg, err := ParseMessage(body)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// Close 登出
func (s *IMAPSource) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	return err
}
