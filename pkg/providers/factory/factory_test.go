package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/config"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/libretranslate"
	"github.com/nerdneilsfield/mail-translator/pkg/providers/stats"
	"github.com/nerdneilsfield/mail-translator/pkg/translation"
)

func TestBuildKeepsConfiguredOrder(t *testing.T) {
	cfg := config.NewDefaultConfig().Translation
	cfg.Providers = []string{"deepl", "libretranslate", "google_free", "openai"}
	cfg.DeepLAPIKey = "abc:fx"
	cfg.LibreTranslateURL = "http://localhost:5000/"
	cfg.OpenAIAPIKey = "sk-test"

	f := New(nil, zap.NewNop())
	result, err := f.Build(cfg)
	require.NoError(t, err)

	names := make([]string, 0, len(result.Translators))
	for _, tr := range result.Translators {
		names = append(names, tr.GetName())
	}
	assert.Equal(t, []string{"deepl", "libretranslate", "google_free", "openai"}, names)
	assert.Equal(t, []string{"deepl", "google_free", "libretranslate", "openai"}, f.Registry().List())

	// libretranslate 是第一个支持识别的
	require.NotNil(t, result.Detector)
	_, isLibre := result.Detector.(*libretranslate.Provider)
	assert.True(t, isLibre)
}

func TestBuildSkipsUnconfiguredProviders(t *testing.T) {
	cfg := config.NewDefaultConfig().Translation
	cfg.Providers = []string{"deepl", "google", "unknown", "Google_Free", "google_free"}

	result, err := New(nil, nil).Build(cfg)
	require.NoError(t, err)
	require.Len(t, result.Translators, 1)
	assert.Equal(t, "google_free", result.Translators[0].GetName())
}

func TestBuildWithoutUsableProvider(t *testing.T) {
	cfg := config.NewDefaultConfig().Translation
	cfg.Providers = []string{"deepl", "openai"}
	cfg.OpenAIAPIKey = "[your_key]"

	_, err := New(nil, nil).Build(cfg)
	assert.ErrorIs(t, err, translation.ErrNoTranslator)
}

func TestBuildWrapsWithStats(t *testing.T) {
	cfg := config.NewDefaultConfig().Translation
	cfg.DetectLanguage = false

	result, err := New(stats.NewStatsManager("", nil), nil).Build(cfg)
	require.NoError(t, err)
	require.Len(t, result.Translators, 1)

	_, wrapped := result.Translators[0].(*stats.StatisticsMiddleware)
	assert.True(t, wrapped)
	assert.Nil(t, result.Detector)
}

func TestCreateProviderAppliesTimeout(t *testing.T) {
	cfg := config.NewDefaultConfig().Translation
	cfg.RequestTimeout = 5
	assert.Equal(t, 5*time.Second, cfg.Timeout())

	p, err := New(nil, nil).CreateProvider(GoogleFree, cfg)
	require.NoError(t, err)
	assert.Equal(t, "google_free", p.GetName())

	_, err = New(nil, nil).CreateProvider("deeplx", cfg)
	assert.Error(t, err)
}
