package solver

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of in-flight solver contexts. Contexts are not
// assumed thread-safe, so each query gets its own, created on acquire
// and closed on release; the semaphore caps how many exist at once.
type Pool struct {
	backend Backend
	sem     *semaphore.Weighted
	timeout time.Duration
}

// DefaultQueryTimeout bounds one satisfiability query when the
// configuration does not say otherwise.
const DefaultQueryTimeout = 2 * time.Second

// NewPool creates a pool of at most size concurrent contexts over the
// backend, with the given per-query timeout.
func NewPool(backend Backend, size int, timeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}

	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	return &Pool{
		backend: backend,
		sem:     semaphore.NewWeighted(int64(size)),
		timeout: timeout,
	}
}

// Backend returns the pooled backend.
func (p *Pool) Backend() Backend {
	return p.backend
}

// Query runs fn with a fresh solver context under the pool's
// concurrency cap. The context passed to fn carries the per-query
// deadline; fn must route it into every Check call.
func (p *Pool) Query(ctx context.Context, fn func(qctx context.Context, sc Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	sc, err := p.backend.CreateContext(qctx)
	if err != nil {
		return err
	}
	defer sc.Close()

	return fn(qctx, sc)
}
