package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// ProviderStats 翻译服务统计
type ProviderStats struct {
	ProviderName       string `json:"provider_name"`
	TotalRequests      int64  `json:"total_requests"`
	SuccessfulRequests int64  `json:"successful_requests"`
	FailedRequests     int64  `json:"failed_requests"`
	UnchangedResponses int64  `json:"unchanged_responses"` // 译文与原文相同
	CharactersIn       int64  `json:"characters_in"`
	CharactersOut      int64  `json:"characters_out"`

	// 占位符保持
	PlaceholderSuccess int64 `json:"placeholder_success"` // 占位符全部保留的次数
	PlaceholderFailed  int64 `json:"placeholder_failed"`  // 有占位符丢失的次数
	PlaceholdersLost   int64 `json:"placeholders_lost"`   // 丢失的占位符总数

	// 性能指标
	AverageLatency time.Duration `json:"average_latency"`
	MinLatency     time.Duration `json:"min_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
	TotalLatency   time.Duration `json:"total_latency"`

	ErrorTypes map[string]int64 `json:"error_types"`

	FirstRequestTime time.Time `json:"first_request_time"`
	LastRequestTime  time.Time `json:"last_request_time"`
}

// RequestResult 单次请求结果
type RequestResult struct {
	Success          bool
	Unchanged        bool
	Latency          time.Duration
	CharactersIn     int
	CharactersOut    int
	ErrorType        string
	PlaceholdersSent int // 请求中的占位符数
	PlaceholdersLost int // 译文中丢失的占位符数
}

// SuccessRate 成功率（百分比）
func (ps *ProviderStats) SuccessRate() float64 {
	if ps.TotalRequests == 0 {
		return 0
	}
	return float64(ps.SuccessfulRequests) / float64(ps.TotalRequests) * 100
}

// PlaceholderRate 占位符完整保留率（百分比）
func (ps *ProviderStats) PlaceholderRate() float64 {
	total := ps.PlaceholderSuccess + ps.PlaceholderFailed
	if total == 0 {
		return 0
	}
	return float64(ps.PlaceholderSuccess) / float64(total) * 100
}

func (ps *ProviderStats) clone() *ProviderStats {
	c := *ps
	c.ErrorTypes = make(map[string]int64, len(ps.ErrorTypes))
	for k, v := range ps.ErrorTypes {
		c.ErrorTypes[k] = v
	}
	return &c
}

// StatsManager 统计管理器
type StatsManager struct {
	stats  map[string]*ProviderStats
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStatsManager 创建统计管理器，path 为空时不持久化
func NewStatsManager(path string, logger *zap.Logger) *StatsManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsManager{
		stats:  make(map[string]*ProviderStats),
		path:   path,
		logger: logger,
	}
}

// getOrCreate 调用方需持有锁
func (sm *StatsManager) getOrCreate(provider string) *ProviderStats {
	if stats, exists := sm.stats[provider]; exists {
		return stats
	}
	stats := &ProviderStats{
		ProviderName: provider,
		ErrorTypes:   make(map[string]int64),
	}
	sm.stats[provider] = stats
	return stats
}

// RecordRequest 记录请求结果
func (sm *StatsManager) RecordRequest(provider string, result RequestResult) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	stats := sm.getOrCreate(provider)

	now := time.Now()
	if stats.FirstRequestTime.IsZero() {
		stats.FirstRequestTime = now
	}
	stats.LastRequestTime = now

	stats.TotalRequests++
	if result.Success {
		stats.SuccessfulRequests++
	} else {
		stats.FailedRequests++
		if result.ErrorType != "" {
			stats.ErrorTypes[result.ErrorType]++
		}
	}
	if result.Unchanged {
		stats.UnchangedResponses++
	}

	stats.CharactersIn += int64(result.CharactersIn)
	stats.CharactersOut += int64(result.CharactersOut)

	// 延迟统计
	stats.TotalLatency += result.Latency
	if stats.TotalRequests == 1 || result.Latency < stats.MinLatency {
		stats.MinLatency = result.Latency
	}
	if result.Latency > stats.MaxLatency {
		stats.MaxLatency = result.Latency
	}
	stats.AverageLatency = stats.TotalLatency / time.Duration(stats.TotalRequests)

	if result.Success && result.PlaceholdersSent > 0 {
		if result.PlaceholdersLost > 0 {
			stats.PlaceholderFailed++
			stats.PlaceholdersLost += int64(result.PlaceholdersLost)
		} else {
			stats.PlaceholderSuccess++
		}
	}
}

// GetStats 获取指定服务的统计副本
func (sm *StatsManager) GetStats(provider string) *ProviderStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if stats, exists := sm.stats[provider]; exists {
		return stats.clone()
	}
	return nil
}

// GetAllStats 获取所有统计信息，按服务名排序
func (sm *StatsManager) GetAllStats() []*ProviderStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	result := make([]*ProviderStats, 0, len(sm.stats))
	for _, stats := range sm.stats {
		result = append(result, stats.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProviderName < result[j].ProviderName })
	return result
}

// Save 保存统计数据到文件
func (sm *StatsManager) Save() error {
	if sm.path == "" {
		return nil
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(sm.path), 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data := make(map[string]*ProviderStats)
	for _, stats := range sm.GetAllStats() {
		data[stats.ProviderName] = stats
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %w", err)
	}

	tempPath := sm.path + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	if err := os.Rename(tempPath, sm.path); err != nil {
		return fmt.Errorf("failed to rename stats file: %w", err)
	}

	sm.logger.Debug("stats saved", zap.String("path", sm.path))
	return nil
}

// Load 从文件加载统计数据，文件不存在时从零开始
func (sm *StatsManager) Load() error {
	if sm.path == "" {
		return nil
	}

	data, err := os.ReadFile(sm.path)
	if os.IsNotExist(err) {
		sm.logger.Debug("stats file not found, starting fresh", zap.String("path", sm.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	var statsData map[string]*ProviderStats
	if err := json.Unmarshal(data, &statsData); err != nil {
		return fmt.Errorf("failed to unmarshal stats data: %w", err)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	for name, stats := range statsData {
		if stats.ErrorTypes == nil {
			stats.ErrorTypes = make(map[string]int64)
		}
		if stats.ProviderName == "" {
			stats.ProviderName = name
		}
		sm.stats[name] = stats
	}

	sm.logger.Debug("stats loaded",
		zap.String("path", sm.path),
		zap.Int("providers", len(statsData)))
	return nil
}

// PrintStatsTable 打印统计表格
func (sm *StatsManager) PrintStatsTable(w io.Writer) {
	allStats := sm.GetAllStats()
	if len(allStats) == 0 {
		fmt.Fprintln(w, "No statistics available.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("📊 Translation Provider Statistics")
	t.AppendHeader(table.Row{"Provider", "Requests", "Success%", "Unchanged", "Placeholder%", "Lost", "Avg Latency", "Chars In", "Errors"})

	for _, stats := range allStats {
		t.AppendRow(table.Row{
			stats.ProviderName,
			stats.TotalRequests,
			fmt.Sprintf("%.1f%%", stats.SuccessRate()),
			stats.UnchangedResponses,
			fmt.Sprintf("%.1f%%", stats.PlaceholderRate()),
			stats.PlaceholdersLost,
			stats.AverageLatency.Round(time.Millisecond).String(),
			stats.CharactersIn,
			formatErrorTypes(stats.ErrorTypes),
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()
}

func formatErrorTypes(errorTypes map[string]int64) string {
	if len(errorTypes) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(errorTypes))
	for k := range errorTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := ""
	for i, k := range keys {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s=%d", k, errorTypes[k])
	}
	return result
}

// AutoSaveRoutine 定期自动保存统计数据
func (sm *StatsManager) AutoSaveRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 最后一次保存
			if err := sm.Save(); err != nil {
				sm.logger.Error("failed to save stats on shutdown", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := sm.Save(); err != nil {
				sm.logger.Error("failed to auto-save stats", zap.Error(err))
			}
		}
	}
}
