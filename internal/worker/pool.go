package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/metrics"
)

// Pool runs the poll-claim-process-commit loop on a fixed-size goroutine
// pool. Claiming is an atomic database compare-and-set, so pools in separate
// processes need no further coordination.
type Pool struct {
	pool     *ants.Pool
	jobs     JobStore
	orch     *Orchestrator
	interval time.Duration
	leaseTTL time.Duration
	workerID string
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewPool(size int, interval, leaseTTL time.Duration, jobs JobStore, orch *Orchestrator, m *metrics.Metrics, logger *slog.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	antsPool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	workerID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	return &Pool{
		pool:     antsPool,
		jobs:     jobs,
		orch:     orch,
		interval: interval,
		leaseTTL: leaseTTL,
		workerID: workerID,
		metrics:  m,
		logger:   logger.With("component", "worker_pool", "worker_id", workerID),
	}, nil
}

// Start launches the poll loop. Safe to call once; subsequent calls no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		// Drain immediately on start, then on every tick.
		p.drain(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.drain(ctx)
			}
		}
	}()

	p.logger.Info("worker pool started",
		"workers", p.pool.Cap(),
		"poll_interval", p.interval,
		"lease_ttl", p.leaseTTL)
}

// drain claims runnable jobs while worker capacity is free and hands each to
// the orchestrator.
func (p *Pool) drain(ctx context.Context) {
	for p.pool.Free() > 0 {
		job, err := p.jobs.ClaimNext(ctx, p.workerID, p.leaseTTL)
		if err != nil {
			p.logger.Error("claim failed", "error", err)
			return
		}
		if job == nil {
			return
		}

		if p.metrics != nil {
			p.metrics.JobsClaimedTotal.Inc()
		}
		p.logger.Debug("job claimed", "job_id", job.ID, "stage", job.Stage)

		claimed := job
		p.wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer p.wg.Done()
			p.orch.Process(ctx, claimed, p.workerID)
		})
		if submitErr != nil {
			p.wg.Done()
			p.logger.Error("submit to pool failed", "job_id", claimed.ID, "error", submitErr)
			return
		}
	}
}

// Stop cancels the poll loop, waits for in-flight jobs, and releases the
// goroutine pool.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.pool.Release()
	p.logger.Info("worker pool stopped")
}
