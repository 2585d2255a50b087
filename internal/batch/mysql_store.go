package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
)

// MySQLStore 使用 MySQL 记录批量任务状态，便于多个进程共享同一批任务。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 连接数据库并确保表结构存在。
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}
	store := &MySQLStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS analysis_jobs (
        id VARCHAR(64) PRIMARY KEY,
        ref VARCHAR(255) NOT NULL,
        model VARCHAR(255) NOT NULL DEFAULT '',
        status VARCHAR(32) NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        max_attempts INT NOT NULL DEFAULT 3,
        result TEXT,
        error_code VARCHAR(64) DEFAULT '',
        last_error TEXT,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_job_status (status)
)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 analysis_jobs 表失败")
	}
	return nil
}

const selectColumns = `SELECT id, ref, model, status, attempts, max_attempts, result, error_code, last_error, created_at, updated_at FROM analysis_jobs`

// Create 实现 Store 接口。
func (s *MySQLStore) Create(ctx context.Context, job *Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}
	now := time.Now().Unix()
	job.CreatedAt = now
	job.UpdatedAt = now

	const stmt = `INSERT INTO analysis_jobs
        (id, ref, model, status, attempts, max_attempts, result, error_code, last_error, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, NULL, '', '', ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt, job.ID, job.Ref, job.Model, job.Status, job.Attempts, job.MaxAttempts, now, now)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrJobConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入任务失败")
	}
	return nil
}

// Get 实现 Store 接口。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务失败")
	}
	return job, nil
}

// Claim 实现 Store 接口，通过条件更新保证同一任务只被一个 worker 领取。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Job, error) {
	const stmt = `UPDATE analysis_jobs SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status = ? AND attempts < max_attempts`
	res, err := s.db.ExecContext(ctx, stmt, StatusRunning, time.Now().Unix(), id, StatusPending)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		return job, nil
	}
	switch {
	case job.Status == StatusSucceeded:
		return job, ErrJobCompleted
	case job.Attempts >= job.MaxAttempts:
		return job, ErrJobExhausted
	default:
		return job, ErrJobConflict
	}
}

// MarkSucceeded 实现 Store 接口。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result analysis.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "编码分析结果失败")
	}
	const stmt = `UPDATE analysis_jobs SET status = ?, result = ?, error_code = '', last_error = '', updated_at = ? WHERE id = ?`
	return s.update(ctx, stmt, StatusSucceeded, string(encoded), time.Now().Unix(), id)
}

// MarkFailed 实现 Store 接口。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code string, lastError string, terminal bool) error {
	status := StatusPending
	if terminal {
		status = StatusFailed
	}
	const stmt = `UPDATE analysis_jobs SET status = ?, error_code = ?, last_error = ?, updated_at = ? WHERE id = ?`
	return s.update(ctx, stmt, status, code, lastError, time.Now().Unix(), id)
}

func (s *MySQLStore) update(ctx context.Context, stmt string, args ...any) error {
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrJobNotFound
	}
	return nil
}

// List 实现 Store 接口。
func (s *MySQLStore) List(ctx context.Context, ids []string) ([]*Job, error) {
	query := selectColumns
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += ` WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务列表失败")
	}
	defer rows.Close()

	byID := make(map[string]*Job)
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析任务记录失败")
		}
		byID[job.ID] = job
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历任务失败")
	}
	if len(ids) == 0 {
		return jobs, nil
	}
	ordered := make([]*Job, 0, len(ids))
	for _, id := range ids {
		if job, ok := byID[id]; ok {
			ordered = append(ordered, job)
		}
	}
	return ordered, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		result    sql.NullString
		lastError sql.NullString
	)
	if err := row.Scan(&job.ID, &job.Ref, &job.Model, &job.Status, &job.Attempts, &job.MaxAttempts,
		&result, &job.ErrorCode, &lastError, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.LastError = lastError.String
	if result.Valid && strings.TrimSpace(result.String) != "" {
		var decoded analysis.Result
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, err
		}
		job.Result = &decoded
	}
	return &job, nil
}

var _ Store = (*MySQLStore)(nil)
