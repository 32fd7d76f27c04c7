package job

import (
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/middleware"
)

// RateLimitSweepJob drops idle per-IP rate limiters.
type RateLimitSweepJob struct {
	limiter *middleware.RateLimiter
}

func NewRateLimitSweepJob(limiter *middleware.RateLimiter) *RateLimitSweepJob {
	return &RateLimitSweepJob{limiter: limiter}
}

func (j *RateLimitSweepJob) Run() {
	remaining := j.limiter.Sweep()
	logger.Debugf("rate limiter sweep: %d clients tracked", remaining)
}
