// Package history 用 SQLite 记录已处理的邮件
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed (
	message_id   TEXT PRIMARY KEY,
	subject      TEXT NOT NULL DEFAULT '',
	report_path  TEXT NOT NULL DEFAULT '',
	delivered    INTEGER NOT NULL DEFAULT 0,
	processed_at TEXT NOT NULL
)`

const upsert = `
INSERT INTO processed (message_id, subject, report_path, delivered, processed_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(message_id) DO UPDATE SET
	subject = excluded.subject,
	report_path = excluded.report_path,
	delivered = MAX(processed.delivered, excluded.delivered),
	processed_at = excluded.processed_at`

// Record 一条处理记录
type Record struct {
	MessageID   string
	Subject     string
	ReportPath  string
	Delivered   bool
	ProcessedAt time.Time
}

// Store 处理记录库
type Store struct {
	db *sql.DB
}

// Open 打开或创建记录库
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: failed to create directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", strings.ReplaceAll(path, " ", "%20"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening sqlite database failed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: connecting to sqlite database failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating schema failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Record 写入或更新一条记录，已投递的状态不会被覆盖为未投递
func (s *Store) Record(ctx context.Context, r Record) error {
	if r.MessageID == "" {
		return errors.New("history: message id is empty")
	}
	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, upsert,
		r.MessageID, r.Subject, r.ReportPath, boolToInt(r.Delivered), r.ProcessedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("history: writing record failed: %w", err)
	}
	return nil
}

// IsDelivered 邮件是否已成功投递
func (s *Store) IsDelivered(ctx context.Context, messageID string) (bool, error) {
	var delivered int
	err := s.db.QueryRowContext(ctx, `SELECT delivered FROM processed WHERE message_id = ?`, messageID).Scan(&delivered)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history: query failed: %w", err)
	}
	return delivered != 0, nil
}

// Recent 返回最近的记录，按处理时间倒序
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT message_id, subject, report_path, delivered, processed_at
FROM processed ORDER BY processed_at DESC, message_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r         Record
			delivered int
			at        string
		)
		if err := rows.Scan(&r.MessageID, &r.Subject, &r.ReportPath, &delivered, &at); err != nil {
			return nil, fmt.Errorf("history: scanning row failed: %w", err)
		}
		r.Delivered = delivered != 0
		r.ProcessedAt, _ = time.Parse(time.RFC3339, at)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating rows failed: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
