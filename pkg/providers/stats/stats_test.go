package stats

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/pkg/providers"
)

type stubTranslator struct {
	name   string
	result string
	err    error
}

func (s *stubTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	return s.result, s.err
}

func (s *stubTranslator) GetName() string { return s.name }

func TestMiddlewareRecordsPlaceholderLoss(t *testing.T) {
	manager := NewStatsManager("", zap.NewNop())

	kept := NewStatisticsMiddleware(&stubTranslator{name: "good", result: "看 [LINK_0] 和 [IMAGE_0]"}, manager)
	out, err := kept.Translate(context.Background(), "see [LINK_0] and [IMAGE_0]", "auto", "zh-TW")
	require.NoError(t, err)
	assert.Equal(t, "看 [LINK_0] 和 [IMAGE_0]", out)

	lossy := NewStatisticsMiddleware(&stubTranslator{name: "lossy", result: "看 和"}, manager)
	_, err = lossy.Translate(context.Background(), "see [LINK_0] and [IMAGE_0]", "auto", "zh-TW")
	require.NoError(t, err)

	good := manager.GetStats("good")
	require.NotNil(t, good)
	assert.Equal(t, int64(1), good.PlaceholderSuccess)
	assert.Equal(t, 100.0, good.PlaceholderRate())

	bad := manager.GetStats("lossy")
	require.NotNil(t, bad)
	assert.Equal(t, int64(1), bad.PlaceholderFailed)
	assert.Equal(t, int64(2), bad.PlaceholdersLost)
	assert.Equal(t, "lossy", lossy.GetName())
}

func TestMiddlewareRecordsErrors(t *testing.T) {
	manager := NewStatsManager("", nil)

	mw := NewStatisticsMiddleware(&stubTranslator{
		name: "deepl",
		err:  providers.StatusError("deepl", 456, "quota exceeded"),
	}, manager)
	_, err := mw.Translate(context.Background(), "hello", "auto", "zh-TW")
	require.Error(t, err)

	mw = NewStatisticsMiddleware(&stubTranslator{name: "deepl", err: context.Canceled}, manager)
	_, _ = mw.Translate(context.Background(), "hello", "auto", "zh-TW")

	mw = NewStatisticsMiddleware(&stubTranslator{name: "deepl", result: "hello"}, manager)
	_, _ = mw.Translate(context.Background(), "hello", "auto", "zh-TW")

	s := manager.GetStats("deepl")
	require.NotNil(t, s)
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.FailedRequests)
	assert.Equal(t, int64(1), s.UnchangedResponses)
	assert.Equal(t, int64(1), s.ErrorTypes[providers.ErrCodeQuota])
	assert.Equal(t, int64(1), s.ErrorTypes["context_canceled"])
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, providers.ErrCodeTimeout},
		{errors.New("dial tcp: connection refused"), "network_error"},
		{errors.New("HTTP 401"), providers.ErrCodeAuth},
		{errors.New("status 429"), providers.ErrCodeRateLimit},
		{errors.New("boom"), providers.ErrCodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestRecordRequestLatency(t *testing.T) {
	manager := NewStatsManager("", nil)
	manager.RecordRequest("google", RequestResult{Success: true, Latency: 30 * time.Millisecond})
	manager.RecordRequest("google", RequestResult{Success: true, Latency: 10 * time.Millisecond})

	s := manager.GetStats("google")
	assert.Equal(t, 10*time.Millisecond, s.MinLatency)
	assert.Equal(t, 30*time.Millisecond, s.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, s.AverageLatency)
	assert.Equal(t, 100.0, s.SuccessRate())
	assert.Nil(t, manager.GetStats("missing"))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats", "stats.json")

	manager := NewStatsManager(path, nil)
	require.NoError(t, manager.Load())
	manager.RecordRequest("google_free", RequestResult{Success: true, Latency: time.Millisecond, CharactersIn: 12})
	manager.RecordRequest("deepl", RequestResult{Success: false, ErrorType: "auth"})
	require.NoError(t, manager.Save())

	loaded := NewStatsManager(path, nil)
	require.NoError(t, loaded.Load())

	all := loaded.GetAllStats()
	require.Len(t, all, 2)
	assert.Equal(t, "deepl", all[0].ProviderName)
	assert.Equal(t, int64(1), all[0].ErrorTypes["auth"])
	assert.Equal(t, int64(12), all[1].CharactersIn)
}

func TestPrintStatsTable(t *testing.T) {
	var buf bytes.Buffer
	manager := NewStatsManager("", nil)
	manager.PrintStatsTable(&buf)
	assert.Contains(t, buf.String(), "No statistics available.")

	buf.Reset()
	manager.RecordRequest("google_free", RequestResult{Success: true, Latency: time.Millisecond})
	manager.PrintStatsTable(&buf)
	assert.Contains(t, buf.String(), "google_free")
	assert.Contains(t, buf.String(), "100.0%")
}
