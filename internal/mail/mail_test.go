package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		want     string
	}{
		{"empty", Criteria{}, "in:inbox"},
		{"subject only", Criteria{Subject: "Weekly Report"}, `subject:"Weekly Report"`},
		{"all fields", Criteria{Subject: "news", Sender: "a@b.com", DateAfter: "2024/01/02"}, `subject:"news" from:a@b.com after:2024/01/02`},
		{"sender and date", Criteria{Sender: "a@b.com", DateAfter: "2024/01/02"}, "from:a@b.com after:2024/01/02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.criteria))
		})
	}
}

const multipartMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: =?UTF-8?B?5ris6Kmm?= Hello\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Hello there, see https://example.com/a=3Fb=3D1\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML version</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=a.pdf\r\n" +
	"\r\n" +
	"%PDF\r\n" +
	"--outer--\r\n"

func TestParseMessage(t *testing.T) {
	t.Run("nested multipart prefers text/plain", func(t *testing.T) {
		msg, err := ParseRaw([]byte(multipartMessage))
		require.NoError(t, err)
		assert.Equal(t, "測試 Hello", msg.Subject)
		assert.Equal(t, "Alice <alice@example.com>", msg.Sender)
		assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 +0000", msg.Date)
		assert.Equal(t, "Hello there, see https://example.com/a?b=1", msg.Body)
	})

	t.Run("html fallback", func(t *testing.T) {
		raw := "From: news@example.com\r\n" +
			"Subject: News\r\n" +
			"Content-Type: text/html; charset=utf-8\r\n" +
			"\r\n" +
			`<html><head><style>p{}</style></head><body><p>First <a href="https://x.com/read">read more</a></p>` +
			`<div>Second<br>line <img src="https://x.com/pic.png"></div><script>alert(1)</script></body></html>`
		msg, err := ParseRaw([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "First read more https://x.com/read\n\nSecond\nline https://x.com/pic.png", msg.Body)
		assert.Equal(t, "Unknown Date", msg.Date)
	})

	t.Run("legacy charset", func(t *testing.T) {
		// "中文" in GBK
		raw := "Subject: gbk\r\n" +
			"Content-Type: text/plain; charset=gbk\r\n" +
			"\r\n" + "\xd6\xd0\xce\xc4"
		msg, err := ParseRaw([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "中文", msg.Body)
	})

	t.Run("missing headers get defaults", func(t *testing.T) {
		msg, err := ParseRaw([]byte("Content-Type: text/plain\r\n\r\nbody"))
		require.NoError(t, err)
		assert.Equal(t, "No Subject", msg.Subject)
		assert.Equal(t, "Unknown Sender", msg.Sender)
		assert.Equal(t, "body", msg.Body)
	})
}

func TestHTMLToText(t *testing.T) {
	text, err := HTMLToText(`<ul><li>One</li><li>Two <a href="https://a.com">https://a.com</a></li></ul><a href="mailto:x@y.z">mail</a>`)
	require.NoError(t, err)
	assert.Equal(t, "One\n\nTwo https://a.com\nmail", text)
}

func newGmailTestServer(t *testing.T, raw string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `subject:"Hello"`, r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == `subject:"Hello"` {
			fmt.Fprint(w, `{"messages":[{"id":"m2","threadId":"t"},{"id":"m1","threadId":"t"}]}`)
			return
		}
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":  "m2",
			"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/gone", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":401,"message":"invalid credentials"}}`)
	})
	return httptest.NewServer(mux)
}

func TestGmailSource(t *testing.T) {
	server := newGmailTestServer(t, multipartMessage)
	defer server.Close()

	ctx := context.Background()
	service, err := gmail.NewService(ctx,
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	source := NewGmailSourceWithService(service, zap.NewNop())
	require.NoError(t, source.Authenticate(ctx))

	ids, err := source.Search(ctx, Criteria{Subject: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids)

	msg, err := source.Fetch(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
	assert.Equal(t, "測試 Hello", msg.Subject)

	_, err = source.Fetch(ctx, "gone")
	assert.ErrorIs(t, err, ErrAuth)
	assert.NoError(t, source.Close())
}

func TestGmailSearchNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"resultSizeEstimate":0}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	service, err := gmail.NewService(context.Background(),
		option.WithHTTPClient(server.Client()),
		option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	_, err = NewGmailSourceWithService(service, nil).Search(context.Background(), Criteria{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGmailSourceRequiresAuthentication(t *testing.T) {
	source := NewGmailSource(GmailConfig{}, nil)
	_, err := source.Search(context.Background(), Criteria{})
	assert.ErrorIs(t, err, ErrAuth)
	_, err = source.Fetch(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAuth)
}

func writeCredentials(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	path := filepath.Join(dir, "credentials.json")
	content := fmt.Sprintf(`{"installed":{"client_id":"id","client_secret":"secret",`+
		`"redirect_uris":["urn:ietf:wg:oauth:2.0:oob"],`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTokenServer(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`, accessToken)
	}))
}

func TestGmailAuthenticate(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		source := NewGmailSource(GmailConfig{
			CredentialsFile: filepath.Join(t.TempDir(), "none.json"),
		}, nil)
		assert.ErrorIs(t, source.Authenticate(context.Background()), ErrAuth)
	})

	t.Run("valid saved token", func(t *testing.T) {
		dir := t.TempDir()
		tokenFile := filepath.Join(dir, "token.json")
		require.NoError(t, saveToken(tokenFile, &oauth2.Token{
			AccessToken: "saved",
			TokenType:   "Bearer",
			Expiry:      time.Now().Add(time.Hour),
		}))

		source := NewGmailSource(GmailConfig{
			CredentialsFile: writeCredentials(t, dir, "http://127.0.0.1:1/token"),
			TokenFile:       tokenFile,
		}, nil)
		require.NoError(t, source.Authenticate(context.Background()))
	})

	t.Run("consent flow saves token", func(t *testing.T) {
		tokens := newTokenServer(t, "fresh")
		defer tokens.Close()

		dir := t.TempDir()
		tokenFile := filepath.Join(dir, "token.json")
		var prompt strings.Builder
		source := NewGmailSource(GmailConfig{
			CredentialsFile: writeCredentials(t, dir, tokens.URL),
			TokenFile:       tokenFile,
			Prompt:          &prompt,
			Input:           strings.NewReader("the-code\n"),
		}, nil)
		require.NoError(t, source.Authenticate(context.Background()))

		assert.Contains(t, prompt.String(), "https://accounts.example.com/auth")
		saved, err := tokenFromFile(tokenFile)
		require.NoError(t, err)
		assert.Equal(t, "fresh", saved.AccessToken)
	})

	t.Run("empty code", func(t *testing.T) {
		dir := t.TempDir()
		source := NewGmailSource(GmailConfig{
			CredentialsFile: writeCredentials(t, dir, "http://127.0.0.1:1/token"),
			TokenFile:       filepath.Join(dir, "token.json"),
			Prompt:          &strings.Builder{},
			Input:           strings.NewReader(""),
		}, nil)
		assert.ErrorIs(t, source.Authenticate(context.Background()), ErrAuth)
	})

	t.Run("expired token is refreshed and saved", func(t *testing.T) {
		tokens := newTokenServer(t, "refreshed")
		defer tokens.Close()

		dir := t.TempDir()
		tokenFile := filepath.Join(dir, "token.json")
		require.NoError(t, saveToken(tokenFile, &oauth2.Token{
			AccessToken:  "old",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-time.Hour),
		}))

		source := NewGmailSource(GmailConfig{
			CredentialsFile: writeCredentials(t, dir, tokens.URL),
			TokenFile:       tokenFile,
		}, nil)
		require.NoError(t, source.Authenticate(context.Background()))

		saved, err := tokenFromFile(tokenFile)
		require.NoError(t, err)
		assert.Equal(t, "refreshed", saved.AccessToken)
	})
}

func TestBuildSearchCriteria(t *testing.T) {
	criteria, err := buildSearchCriteria(Criteria{Subject: "news", Sender: "a@b.com", DateAfter: "2024/03/05"})
	require.NoError(t, err)
	assert.Equal(t, "news", criteria.Header.Get("Subject"))
	assert.Equal(t, "a@b.com", criteria.Header.Get("From"))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), criteria.Since)
	assert.Equal(t, []string{imap.DeletedFlag}, criteria.WithoutFlags)

	_, err = buildSearchCriteria(Criteria{DateAfter: "05-03-2024"})
	assert.Error(t, err)
}

func startIMAPServer(t *testing.T) string {
	t.Helper()
	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })
	return l.Addr().String()
}

func TestIMAPSource(t *testing.T) {
	addr := startIMAPServer(t)
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		source := NewIMAPSource(IMAPConfig{Server: addr, Username: "username", Password: "nope", Insecure: true}, nil)
		assert.ErrorIs(t, source.Authenticate(ctx), ErrAuth)
	})

	t.Run("missing credentials", func(t *testing.T) {
		source := NewIMAPSource(IMAPConfig{Server: addr, Insecure: true}, nil)
		assert.ErrorIs(t, source.Authenticate(ctx), ErrAuth)
	})

	t.Run("search and fetch", func(t *testing.T) {
		source := NewIMAPSource(IMAPConfig{Server: addr, Username: "username", Password: "password", Insecure: true}, zap.NewNop())
		require.NoError(t, source.Authenticate(ctx))
		defer source.Close()

		ids, err := source.Search(ctx, Criteria{})
		require.NoError(t, err)
		require.NotEmpty(t, ids)

		msg, err := source.Fetch(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, ids[0], msg.ID)
		assert.Contains(t, msg.Body, "Hi there")

		_, err = source.Search(ctx, Criteria{Subject: "definitely-not-present-subject"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not authenticated", func(t *testing.T) {
		source := NewIMAPSource(IMAPConfig{Server: addr}, nil)
		_, err := source.Search(ctx, Criteria{})
		assert.ErrorIs(t, err, ErrAuth)
		assert.NoError(t, source.Close())
	})
}
