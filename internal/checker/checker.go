package checker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CheckFunc performs the work for a single target.
type CheckFunc[R any] func(ctx context.Context, target string) R

// AuditFunc is a callback invoked after each target finishes
type AuditFunc[R any] func(target string, result R, duration float64) error

// SkipFunc builds the result for a target that never started because ctx
// ended while it was queued.
type SkipFunc[R any] func(target string, err error) R

// Runner paces a batch of targets with a worker pool and a global rate limit.
// It is an operator-side control for the batch CLI; single scans never go
// through it.
type Runner struct {
	Concurrency int           // Maximum number of concurrent targets
	RateLimit   int           // Target starts per second (global), 0 = unlimited
	Timeout     time.Duration // Overall deadline per target, 0 = none
}

// RunChecks executes check against every target. Results are returned in
// input order. Targets still queued when ctx ends are left as the zero R.
func RunChecks[R any](ctx context.Context, r *Runner, targets []string, check CheckFunc[R], auditFn AuditFunc[R]) []R {
	return RunChecksWithSkip(ctx, r, targets, check, nil, auditFn)
}

// RunChecksWithSkip is RunChecks with an explicit result for targets that
// were skipped after ctx ended. Skipped targets still reach auditFn.
func RunChecksWithSkip[R any](ctx context.Context, r *Runner, targets []string, check CheckFunc[R], skip SkipFunc[R], auditFn AuditFunc[R]) []R {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	// Rate limiter
	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	// Worker pool
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]R, len(targets))

	for i, target := range targets {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()

			// Acquire semaphore
			sem <- struct{}{}
			defer func() { <-sem }()

			// Wait for rate limiter; a cancelled or expiring ctx ends the queue.
			if err := limiter.Wait(ctx); err != nil {
				if skip == nil {
					return
				}
				result := skip(t, err)
				if auditFn != nil {
					_ = auditFn(t, result, 0)
				}
				results[idx] = result
				return
			}

			start := time.Now()

			checkCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			result := check(checkCtx, t)

			duration := time.Since(start).Seconds()

			if auditFn != nil {
				_ = auditFn(t, result, duration)
			}

			// Each goroutine owns its own slot.
			results[idx] = result
		}(i, target)
	}

	wg.Wait()
	return results
}
