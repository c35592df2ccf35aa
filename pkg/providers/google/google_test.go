package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
)

const freeBody = `[[["你好，","Hello, ",null,null,10],["世界","world",null,null,10]],null,"en",null,null,null,0.98]`

func TestFreeProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "gtx", r.URL.Query().Get("client"))
		assert.Equal(t, "auto", r.URL.Query().Get("sl"))
		assert.Equal(t, "Hello, world", r.PostForm.Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(freeBody))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIEndpoint = server.URL
	p := New(cfg)
	assert.Equal(t, "google_free", p.GetName())
	assert.False(t, p.GetCapabilities().RequiresAPIKey)

	t.Run("translate", func(t *testing.T) {
		got, err := p.Translate(context.Background(), "Hello, world", "auto", "zh-TW")
		require.NoError(t, err)
		assert.Equal(t, "你好，世界", got)
	})

	t.Run("detect", func(t *testing.T) {
		lang, confidence, err := p.Detect(context.Background(), "Hello, world")
		require.NoError(t, err)
		assert.Equal(t, "en", lang)
		assert.InDelta(t, 0.98, confidence, 0.0001)
	})
}

func TestCloudProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("key") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
			return
		}
		switch r.URL.Path {
		case "/detect":
			w.Write([]byte(`{"data":{"detections":[[{"language":"ja","confidence":0.7}]]}}`))
		default:
			assert.Equal(t, "zh-TW", r.PostForm.Get("target"))
			assert.Empty(t, r.PostForm.Get("source"))
			w.Write([]byte(`{"data":{"translations":[{"translatedText":"早安","detectedSourceLanguage":"ja"}]}}`))
		}
	}))
	defer server.Close()

	newProvider := func(key string) *Provider {
		cfg := DefaultConfig()
		cfg.Free = false
		cfg.APIEndpoint = server.URL
		cfg.APIKey = key
		cfg.MaxRetries = 0
		return New(cfg)
	}

	t.Run("translate", func(t *testing.T) {
		got, err := newProvider("secret").Translate(context.Background(), "おはよう", "auto", "zh-TW")
		require.NoError(t, err)
		assert.Equal(t, "早安", got)
	})

	t.Run("detect", func(t *testing.T) {
		lang, confidence, err := newProvider("secret").Detect(context.Background(), "おはよう")
		require.NoError(t, err)
		assert.Equal(t, "ja", lang)
		assert.InDelta(t, 0.7, confidence, 0.0001)
	})

	t.Run("auth error", func(t *testing.T) {
		_, err := newProvider("wrong").Translate(context.Background(), "x", "auto", "zh-TW")
		var perr *providers.Error
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, providers.ErrCodeAuth, perr.Code)
		assert.Equal(t, "API key not valid", perr.Message)
		assert.False(t, perr.IsRetryable())
	})
}

func TestParseFreeResponse(t *testing.T) {
	_, err := parseFreeResponse([]byte(`[[],null,"en"]`))
	assert.Error(t, err)

	_, err = parseFreeResponse([]byte(`not json`))
	assert.Error(t, err)
}

func TestNormalizeLanguageCode(t *testing.T) {
	assert.Equal(t, "zh-TW", normalizeLanguageCode("zh-Hant"))
	assert.Equal(t, "zh-TW", normalizeLanguageCode("zh_TW"))
	assert.Equal(t, "auto", normalizeLanguageCode("auto"))
}
