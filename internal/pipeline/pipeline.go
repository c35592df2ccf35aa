// Package pipeline 执行一次完整的邮件翻译流程
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/mail-translator/internal/history"
	"github.com/nerdneilsfield/mail-translator/internal/logger"
	"github.com/nerdneilsfield/mail-translator/internal/mail"
	"github.com/nerdneilsfield/mail-translator/internal/proofread"
	"github.com/nerdneilsfield/mail-translator/internal/report"
)

var (
	// ErrAuth 邮箱授权失败
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound 没有可处理的邮件
	ErrNotFound = errors.New("no email to process")
	// ErrDelivery 报告推送失败
	ErrDelivery = errors.New("report delivery failed")
	// ErrEmptyCriteria 搜索条件为空
	ErrEmptyCriteria = errors.New("search criteria is empty")
)

// Stage 流程阶段
type Stage string

const (
	StageAuthenticate Stage = "authenticate"
	StageSearch       Stage = "search"
	StageFetch        Stage = "fetch"
	StageTranslate    Stage = "translate"
	StageProofread    Stage = "proofread"
	StageReport       Stage = "report"
	StageDeliver      Stage = "deliver"
	StageHistory      Stage = "history"
)

// Status 阶段状态
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// StageResult 阶段结果
type StageResult struct {
	Stage   Stage
	Status  Status
	Detail  string
	Elapsed time.Duration
}

// Outcome 一次运行的结果
type Outcome struct {
	RunID        string
	MessageID    string
	Subject      string
	ReportPath   string
	Delivered    bool
	Improvements []string
	Stages       []StageResult
}

// Translator 整段文本翻译
type Translator interface {
	TranslateText(ctx context.Context, text string) (string, error)
}

// Enhancer 译文校对
type Enhancer interface {
	Enhance(ctx context.Context, original, translated string) proofread.Result
}

// Deliverer 报告推送
type Deliverer interface {
	SendReport(ctx context.Context, chatID, path string) error
}

// Ledger 处理记录
type Ledger interface {
	IsDelivered(ctx context.Context, messageID string) (bool, error)
	Record(ctx context.Context, r history.Record) error
}

// Runner 流程执行器
type Runner struct {
	source        mail.Source
	translator    Translator
	writer        *report.Writer
	proofreader   Enhancer
	deliverer     Deliverer
	chatID        string
	ledger        Ledger
	dryRun        bool
	skipProcessed bool
	onStage       func(StageResult)
	logger        *zap.Logger
}

// Option 执行器选项
type Option func(*Runner)

// WithProofreader 设置校对
func WithProofreader(e Enhancer) Option {
	return func(r *Runner) {
		r.proofreader = e
	}
}

// WithDeliverer 设置推送目标
func WithDeliverer(d Deliverer, chatID string) Option {
	return func(r *Runner) {
		r.deliverer = d
		r.chatID = chatID
	}
}

// WithLedger 设置处理记录
func WithLedger(l Ledger) Option {
	return func(r *Runner) {
		r.ledger = l
	}
}

// WithDryRun 只生成报告，不推送
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithSkipProcessed 跳过已投递的邮件
func WithSkipProcessed(skip bool) Option {
	return func(r *Runner) {
		r.skipProcessed = skip
	}
}

// WithStageHook 每个阶段结束时回调
func WithStageHook(fn func(StageResult)) Option {
	return func(r *Runner) {
		r.onStage = fn
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建执行器
func New(source mail.Source, translator Translator, writer *report.Writer, opts ...Option) *Runner {
	r := &Runner{
		source:     source,
		translator: translator,
		writer:     writer,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run 单次运行的状态
type run struct {
	*Runner
	outcome *Outcome
	logger  *zap.Logger
}

func (r *run) stage(stage Stage, status Status, start time.Time, detail string) {
	result := StageResult{Stage: stage, Status: status, Detail: detail, Elapsed: time.Since(start)}
	r.outcome.Stages = append(r.outcome.Stages, result)

	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.String("status", string(status)),
		zap.Duration("elapsed", result.Elapsed),
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	if status == StatusFailed {
		r.logger.Warn("stage finished", fields...)
	} else {
		r.logger.Info("stage finished", fields...)
	}

	if r.onStage != nil {
		r.onStage(result)
	}
}

// Run 执行 授权 → 搜索 → 读取 → 翻译 → 校对 → 报告 → 推送 → 记录
func (r *Runner) Run(ctx context.Context, criteria mail.Criteria) (*Outcome, error) {
	if criteria.Subject == "" && criteria.Sender == "" && criteria.DateAfter == "" {
		return nil, ErrEmptyCriteria
	}

	runLogger, runID := logger.ForRun(r.logger)
	rn := &run{Runner: r, outcome: &Outcome{RunID: runID}, logger: runLogger}
	out := rn.outcome

	start := time.Now()
	if err := r.source.Authenticate(ctx); err != nil {
		rn.stage(StageAuthenticate, StatusFailed, start, err.Error())
		return out, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	defer r.source.Close()
	rn.stage(StageAuthenticate, StatusOK, start, "")

	start = time.Now()
	ids, err := r.source.Search(ctx, criteria)
	if err == nil && len(ids) == 0 {
		err = mail.ErrNotFound
	}
	if err != nil {
		rn.stage(StageSearch, StatusFailed, start, err.Error())
		return out, classify(err)
	}

	id, err := rn.pick(ctx, ids)
	if err != nil {
		rn.stage(StageSearch, StatusFailed, start, err.Error())
		return out, err
	}
	out.MessageID = id
	rn.stage(StageSearch, StatusOK, start, fmt.Sprintf("%d found", len(ids)))

	start = time.Now()
	msg, err := r.source.Fetch(ctx, id)
	if err != nil {
		rn.stage(StageFetch, StatusFailed, start, err.Error())
		return out, classify(err)
	}
	out.Subject = msg.Subject
	rn.stage(StageFetch, StatusOK, start, msg.Subject)

	start = time.Now()
	translated, err := r.translator.TranslateText(ctx, msg.Body)
	if err != nil {
		rn.stage(StageTranslate, StatusFailed, start, err.Error())
		return out, fmt.Errorf("translate: %w", err)
	}
	rn.stage(StageTranslate, StatusOK, start, "")

	start = time.Now()
	if r.proofreader == nil {
		rn.stage(StageProofread, StatusSkipped, start, "disabled")
	} else {
		result := r.proofreader.Enhance(ctx, msg.Body, translated)
		translated = result.Proofread
		out.Improvements = result.Improvements
		rn.stage(StageProofread, StatusOK, start, fmt.Sprintf("%d improvements (%s)", len(result.Improvements), result.Method))
	}

	start = time.Now()
	path, err := r.writer.Write(msg, translated)
	if err != nil {
		rn.stage(StageReport, StatusFailed, start, err.Error())
		return out, fmt.Errorf("report: %w", err)
	}
	out.ReportPath = path
	rn.stage(StageReport, StatusOK, start, path)

	deliverErr := rn.deliver(ctx, path)
	rn.record(ctx, msg)

	return out, deliverErr
}

// pick 选择最新的一封，开启跳过时选择最新的未投递邮件
func (r *run) pick(ctx context.Context, ids []string) (string, error) {
	if !r.skipProcessed || r.ledger == nil {
		return ids[0], nil
	}
	for _, id := range ids {
		delivered, err := r.ledger.IsDelivered(ctx, id)
		if err != nil {
			r.logger.Warn("history lookup failed", zap.String("message_id", id), zap.Error(err))
			return id, nil
		}
		if !delivered {
			return id, nil
		}
		r.logger.Debug("skipping delivered message", zap.String("message_id", id))
	}
	return "", fmt.Errorf("%w: all %d matching emails were already delivered", ErrNotFound, len(ids))
}

func (r *run) deliver(ctx context.Context, path string) error {
	start := time.Now()
	switch {
	case r.dryRun:
		r.stage(StageDeliver, StatusSkipped, start, "dry run")
		return nil
	case r.deliverer == nil:
		r.stage(StageDeliver, StatusSkipped, start, "telegram not configured")
		return nil
	}

	if err := r.deliverer.SendReport(ctx, r.chatID, path); err != nil {
		r.stage(StageDeliver, StatusFailed, start, err.Error())
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	r.outcome.Delivered = true
	r.stage(StageDeliver, StatusOK, start, "")
	return nil
}

// record 写入处理记录，失败只记录日志
func (r *run) record(ctx context.Context, msg *mail.Message) {
	start := time.Now()
	if r.ledger == nil {
		r.stage(StageHistory, StatusSkipped, start, "disabled")
		return
	}
	err := r.ledger.Record(ctx, history.Record{
		MessageID:  r.outcome.MessageID,
		Subject:    msg.Subject,
		ReportPath: r.outcome.ReportPath,
		Delivered:  r.outcome.Delivered,
	})
	if err != nil {
		r.stage(StageHistory, StatusFailed, start, err.Error())
		return
	}
	r.stage(StageHistory, StatusOK, start, "")
}

// classify 将邮件来源的错误映射为流程错误
func classify(err error) error {
	switch {
	case errors.Is(err, mail.ErrAuth):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case errors.Is(err, mail.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}
