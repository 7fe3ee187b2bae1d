package fetch

import (
	"context"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Pool runs per-track work with bounded concurrency. Create one per sync run.
type Pool struct {
	concurrency int
	limiter     *rate.Limiter
	logger      *log.Logger
}

// NewPool creates a pool running at most concurrency tasks at once. A nil limiter dispatches
// without rate limiting.
func NewPool(concurrency int, limiter *rate.Limiter, logger *log.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Pool{concurrency: concurrency, limiter: limiter, logger: logger}
}

// Run dispatches task for indexes 0..n-1 and waits for every started task to return.
//
// At most concurrency tasks run at once. Cancellation of ctx is checked before each dispatch and
// again when a task gets its slot, so once ctx is done no further task starts. Tasks already
// started run to completion on a context that is not cancelled with ctx. Run returns how many
// tasks started and ctx's error if dispatch stopped early.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) (int, error) {
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	detached := context.WithoutCancel(ctx)

	var started atomic.Int64
	var stopErr error
	for i := range n {
		if err := p.wait(ctx); err != nil {
			stopErr = err
			break
		}
		// Go blocks while every slot is busy; a cancel during that wait is seen by the task.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			started.Add(1)
			task(detached, i)
			return nil
		})
	}

	if err := g.Wait(); stopErr == nil {
		stopErr = err
	}
	if stopErr != nil {
		p.logger.Info("dispatch stopped", "started", started.Load(), "total", n, "reason", stopErr)
	}
	return int(started.Load()), stopErr
}

// wait returns ctx's error once it is done, otherwise blocks on the rate limiter.
func (p *Pool) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return err
	}
	return nil
}
