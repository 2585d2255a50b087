package retry

import (
	"fmt"
	"slices"
	"time"

	xerrors "ai-git/internal/errors"
)

const (
	DefaultMaxRetries = 5
	DefaultMinWait    = 2 * time.Second
	DefaultMaxWait    = 10 * time.Second
)

// DefaultRetryableStatusCodes 是默认视为瞬时故障的 HTTP 状态码。
var DefaultRetryableStatusCodes = []int{429, 503, 504}

// Policy 描述线性退避的重试策略。
type Policy struct {
	// MaxRetries 为失败后最多重试的次数，总尝试次数为 MaxRetries+1。
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
	// RetryableStatusCodes 中的状态码由分类器判定为可重试。
	RetryableStatusCodes []int
}

// DefaultPolicy 返回 5 次重试、2s 到 10s 线性退避的默认策略。
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:           DefaultMaxRetries,
		MinWait:              DefaultMinWait,
		MaxWait:              DefaultMaxWait,
		RetryableStatusCodes: slices.Clone(DefaultRetryableStatusCodes),
	}
}

// Validate 校验策略参数。
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("重试次数不能为负数: %d", p.MaxRetries))
	case p.MinWait < 0 || p.MaxWait < 0:
		return xerrors.New(xerrors.CodeInvalidArgument, "等待时间不能为负数")
	case p.MinWait > p.MaxWait:
		return xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("最小等待时间 %s 大于最大等待时间 %s", p.MinWait, p.MaxWait))
	}
	return nil
}

// Wait 返回第 i 次重试前（从 0 开始）需要等待的时长。先乘后除，最后一次等待恰好为 MaxWait。
func (p Policy) Wait(i int) time.Duration {
	if i < 0 {
		i = 0
	}
	if p.MaxRetries <= 1 {
		return p.MinWait
	}
	wait := p.MinWait + (p.MaxWait-p.MinWait)*time.Duration(i)/time.Duration(p.MaxRetries-1)
	if wait > p.MaxWait {
		return p.MaxWait
	}
	return wait
}

// Schedule 返回完整的等待序列，长度等于 MaxRetries。
func (p Policy) Schedule() []time.Duration {
	if p.MaxRetries <= 0 {
		return nil
	}
	waits := make([]time.Duration, p.MaxRetries)
	for i := range waits {
		waits[i] = p.Wait(i)
	}
	return waits
}

// RetryableStatus 判断 HTTP 状态码是否属于可重试集合。
func (p Policy) RetryableStatus(status int) bool {
	return slices.Contains(p.RetryableStatusCodes, status)
}
