package export

import (
	"context"
	"errors"

	"go.uber.org/zap"

	domain "fleet-analytics/internal/reporting/domain"
)

// Pool bounds the number of concurrent PDF and Excel renders. Jobs past
// the worker count queue on the job channel; a caller whose context ends
// first gets the context error and any late result is discarded.
type Pool struct {
	jobs   chan renderJob
	logger *zap.Logger
}

type renderJob struct {
	renderer Renderer
	report   *domain.Report
	result   chan renderResult
}

type renderResult struct {
	data []byte
	err  error
}

// NewPool starts workers goroutines consuming render jobs.
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := &Pool{
		jobs:   make(chan renderJob, workers*2),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		go pool.worker()
	}
	return pool
}

func (p *Pool) worker() {
	for job := range p.jobs {
		data, err := job.renderer.Render(job.report)
		if err != nil {
			p.logger.Warn("render failed", zap.String("ext", job.renderer.Ext()), zap.Error(err))
		}
		// Buffered; never blocks even when the caller has gone.
		job.result <- renderResult{data: data, err: err}
	}
}

// Render submits a job and waits for its result or the context.
func (p *Pool) Render(ctx context.Context, renderer Renderer, report *domain.Report) ([]byte, error) {
	if p == nil {
		return nil, errors.New("export: nil pool")
	}
	job := renderJob{
		renderer: renderer,
		report:   report,
		result:   make(chan renderResult, 1),
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-job.result:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting jobs. In-flight renders finish on their own.
func (p *Pool) Close() {
	close(p.jobs)
}
