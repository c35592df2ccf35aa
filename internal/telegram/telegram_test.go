package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorded struct {
	path     string
	chatID   string
	text     string
	fileName string
	content  string
}

func newServer(t *testing.T, documentStatus int, documentBody string) (*httptest.Server, *[]recorded) {
	t.Helper()

	var mu sync.Mutex
	var calls []recorded

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch r.URL.Path {
		case "/botTOKEN/sendMessage":
			require.NoError(t, r.ParseForm())
			calls = append(calls, recorded{path: r.URL.Path, chatID: r.PostForm.Get("chat_id"), text: r.PostForm.Get("text")})
			w.Write([]byte(`{"ok":true,"result":{}}`))
		case "/botTOKEN/sendDocument":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			file, header, err := r.FormFile("document")
			require.NoError(t, err)
			data, _ := io.ReadAll(file)
			calls = append(calls, recorded{
				path:     r.URL.Path,
				chatID:   r.FormValue("chat_id"),
				fileName: header.Filename,
				content:  string(data),
			})
			w.WriteHeader(documentStatus)
			w.Write([]byte(documentBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeReport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email_translation_20240101_000000.md")
	require.NoError(t, os.WriteFile(path, []byte("# report"), 0o644))
	return path
}

func TestSendReport(t *testing.T) {
	server, calls := newServer(t, http.StatusOK, `{"ok":true,"result":{}}`)
	bot := New("TOKEN", WithBaseURL(server.URL+"/"))

	err := bot.SendReport(context.Background(), "42", writeReport(t))
	require.NoError(t, err)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/botTOKEN/sendMessage", (*calls)[0].path)
	assert.Equal(t, "42", (*calls)[0].chatID)
	assert.Equal(t, AnnounceText, (*calls)[0].text)

	assert.Equal(t, "/botTOKEN/sendDocument", (*calls)[1].path)
	assert.Equal(t, "42", (*calls)[1].chatID)
	assert.Equal(t, "email_translation_20240101_000000.md", (*calls)[1].fileName)
	assert.Equal(t, "# report", (*calls)[1].content)
}

func TestSendReportFailure(t *testing.T) {
	server, _ := newServer(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	bot := New("TOKEN", WithBaseURL(server.URL))

	err := bot.SendReport(context.Background(), "42", writeReport(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSendReportNotOK(t *testing.T) {
	server, _ := newServer(t, http.StatusOK, `{"ok":false,"description":"weird"}`)
	bot := New("TOKEN", WithBaseURL(server.URL))

	err := bot.SendReport(context.Background(), "42", writeReport(t))
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestSendDocumentMissingFile(t *testing.T) {
	bot := New("TOKEN", WithBaseURL("http://127.0.0.1:1"))
	err := bot.SendDocument(context.Background(), "42", filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDelivery)
}

func TestSendMessageUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New("TOKEN", WithBaseURL(url)).SendMessage(context.Background(), "42", "hi")
	assert.ErrorIs(t, err, ErrDelivery)
}

func TestTransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	core, logs := observer.New(zap.DebugLevel)
	bot := New("123456:SECRET", WithBaseURL(url), WithLogger(zap.New(core)))

	err := bot.SendReport(context.Background(), "42", writeReport(t))
	require.ErrorIs(t, err, ErrDelivery)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.NotContains(t, err.Error(), "/bot")
	assert.Contains(t, err.Error(), "sendDocument")

	warnings := logs.FilterMessage("failed to send announcement").All()
	require.Len(t, warnings, 1)
	for _, field := range warnings[0].Context {
		assert.NotContains(t, field.String, "SECRET")
		if e, ok := field.Interface.(error); ok {
			assert.NotContains(t, e.Error(), "SECRET")
		}
	}
}
