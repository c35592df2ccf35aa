package libretranslate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
)

func newTestServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/translate":
			var req TranslateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Q == "bad" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"Invalid request"}`))
				return
			}
			assert.Equal(t, "auto", req.Source)
			assert.Equal(t, "zt", req.Target)
			w.Write([]byte(`{"translatedText":"你好"}`))
		case "/detect":
			w.Write([]byte(`[{"confidence":90.0,"language":"en"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestProvider(t *testing.T) {
	server := newTestServer(t)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIEndpoint = server.URL + "/"
	cfg.MaxRetries = 0
	p := New(cfg)

	t.Run("translate", func(t *testing.T) {
		got, err := p.Translate(context.Background(), "Hello", "auto", "zh-TW")
		require.NoError(t, err)
		assert.Equal(t, "你好", got)
	})

	t.Run("detect", func(t *testing.T) {
		lang, confidence, err := p.Detect(context.Background(), "Hello")
		require.NoError(t, err)
		assert.Equal(t, "en", lang)
		assert.InDelta(t, 0.9, confidence, 0.0001)
	})

	t.Run("api error", func(t *testing.T) {
		_, err := p.Translate(context.Background(), "bad", "auto", "zh-TW")
		var perr *providers.Error
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, providers.ErrCodeBadRequest, perr.Code)
		assert.Equal(t, "Invalid request", perr.Message)
	})
}

func TestNormalizeLanguageCode(t *testing.T) {
	assert.Equal(t, "zt", normalizeLanguageCode("zh-TW"))
	assert.Equal(t, "zh", normalizeLanguageCode("zh_CN"))
	assert.Equal(t, "auto", normalizeLanguageCode(""))
	assert.Equal(t, "en", normalizeLanguageCode("en-US"))
}
