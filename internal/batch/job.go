// Package batch 以任务队列的方式批量分析多个提交。
package batch

import (
	stdErrors "errors"
	"sort"

	"ai-git/internal/analysis"
	xerrors "ai-git/internal/errors"
)

// Status 表示批量任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal 判断状态是否为终态。
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job 描述一次待分析的提交。
type Job struct {
	ID          string           `json:"id"`
	Ref         string           `json:"ref"`
	Model       string           `json:"model"`
	Status      Status           `json:"status"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"max_attempts"`
	Result      *analysis.Result `json:"result,omitempty"`
	ErrorCode   string           `json:"error_code,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
	CreatedAt   int64            `json:"created_at"`
	UpdatedAt   int64            `json:"updated_at"`
}

func (j *Job) clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

const (
	CodeJobNotFound   xerrors.Code = "JOB_NOT_FOUND"
	CodeJobConflict   xerrors.Code = "JOB_CONFLICT"
	CodeJobCompleted  xerrors.Code = "JOB_COMPLETED"
	CodeJobExhausted  xerrors.Code = "JOB_ATTEMPTS_EXHAUSTED"
	CodeJobValidation xerrors.Code = "JOB_VALIDATION_FAILED"
	CodeJobPublish    xerrors.Code = "JOB_PUBLISH_FAILED"
	CodeJobProcessing xerrors.Code = "JOB_PROCESSING_FAILED"
)

var (
	// ErrJobNotFound 表示指定的任务不存在。
	ErrJobNotFound = xerrors.New(CodeJobNotFound, "job not found")
	// ErrJobConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrJobConflict = xerrors.New(CodeJobConflict, "job conflict", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrJobCompleted 表示任务已经成功完成。
	ErrJobCompleted = xerrors.New(CodeJobCompleted, "job already completed", xerrors.WithSeverity(xerrors.SeverityInfo))
	// ErrJobExhausted 表示任务的尝试次数已经耗尽。
	ErrJobExhausted = xerrors.New(CodeJobExhausted, "job attempts exhausted", xerrors.WithSeverity(xerrors.SeverityCritical))
)

func init() {
	xerrors.Register(CodeJobNotFound, xerrors.Attributes{Message: "job not found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeJobConflict, xerrors.Attributes{Message: "job conflict", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeJobCompleted, xerrors.Attributes{Message: "job already completed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeJobExhausted, xerrors.Attributes{Message: "job attempts exhausted", Severity: xerrors.SeverityCritical})
	xerrors.Register(CodeJobValidation, xerrors.Attributes{Message: "job validation failed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeJobPublish, xerrors.Attributes{Message: "failed to publish job", Severity: xerrors.SeverityCritical, Retryable: true})
	xerrors.Register(CodeJobProcessing, xerrors.Attributes{Message: "job execution failed", Severity: xerrors.SeverityWarning, Retryable: true})
}

// skippable 判断领取失败是否只需跳过该消息。
func skippable(err error) bool {
	return stdErrors.Is(err, ErrJobNotFound) || stdErrors.Is(err, ErrJobCompleted) ||
		stdErrors.Is(err, ErrJobExhausted) || stdErrors.Is(err, ErrJobConflict)
}

func sortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt != jobs[j].CreatedAt {
			return jobs[i].CreatedAt < jobs[j].CreatedAt
		}
		return jobs[i].ID < jobs[j].ID
	})
}
