package syncer

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/remote"
)

const (
	pushQueueSize = 64
	errBufferSize = 16
)

// PushError describes a failed background push.
type PushError struct {
	Op  string // "upsert" or "delete"
	ID  string // record id for deletes
	Err error
}

func (e *PushError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("background %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("background %s: %v", e.Op, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

type pushJob struct {
	op      string
	id      string
	records []model.Reflection
}

// Pusher sends local mutations to the remote service in the background.
// Failures never reach the caller of the mutation; they are logged, counted
// and offered on Errors.
type Pusher struct {
	remote  remote.Client
	logger  *zap.Logger
	metrics *Metrics

	jobs   chan pushJob
	errs   chan error
	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPusher starts a single worker so pushes reach the service in the order
// they were queued.
func NewPusher(rc remote.Client, logger *zap.Logger, metrics *Metrics) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)

	p := &Pusher{
		remote:  rc,
		logger:  logger.Named("push"),
		metrics: metrics,
		jobs:    make(chan pushJob, pushQueueSize),
		errs:    make(chan error, errBufferSize),
		group:   g,
		ctx:     gctx,
		cancel:  cancel,
	}
	g.Go(p.work)
	return p
}

// Errors reports background push failures. Failures are dropped when
// nobody drains the channel.
func (p *Pusher) Errors() <-chan error { return p.errs }

// PushAll queues an upsert of records. It reports whether the job was
// queued; nothing is queued when the remote is not configured or the pusher
// is closed.
func (p *Pusher) PushAll(records []model.Reflection) bool {
	return p.enqueue(pushJob{op: "upsert", records: model.CloneAll(records)})
}

// Delete queues a remote delete of id.
func (p *Pusher) Delete(id string) bool {
	return p.enqueue(pushJob{op: "delete", id: id})
}

func (p *Pusher) enqueue(job pushJob) bool {
	if !p.remote.Available() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.fail(job, fmt.Errorf("push queue full"))
		return false
	}
}

func (p *Pusher) work() error {
	for job := range p.jobs {
		if err := p.run(job); err != nil {
			p.fail(job, err)
		}
	}
	return nil
}

func (p *Pusher) run(job pushJob) error {
	switch job.op {
	case "delete":
		return p.remote.Delete(p.ctx, job.id)
	default:
		userID, err := p.remote.ResolveUserID(p.ctx)
		if err != nil {
			return err
		}
		n, err := p.remote.UpsertMany(p.ctx, userID, job.records)
		if err != nil {
			return err
		}
		p.metrics.Pushed.Add(float64(n))
		return nil
	}
}

func (p *Pusher) fail(job pushJob, err error) {
	perr := &PushError{Op: job.op, ID: job.id, Err: err}
	p.metrics.PushFailures.WithLabelValues(job.op).Inc()
	p.logger.Warn("background push failed", zap.String("op", job.op), zap.String("id", job.id), zap.Error(err))
	select {
	case p.errs <- perr:
	default:
	}
}

// Close stops accepting jobs, waits for queued ones to finish and closes
// Errors.
func (p *Pusher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	err := p.group.Wait()
	p.cancel()
	close(p.errs)
	return err
}
