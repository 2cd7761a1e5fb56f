package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/remote"
)

// ErrSyncInProgress is reported when Sync is called while another sync runs.
var ErrSyncInProgress = errors.New("sync already in progress")

// Result is the outcome of one sync.
type Result struct {
	Success     bool      `json:"success"`
	PushedCount int       `json:"pushedCount"`
	PulledCount int       `json:"pulledCount"`
	Errors      []string  `json:"errors"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Local is the part of the store a sync needs.
type Local interface {
	Reconcile(ctx context.Context, fn func(local []model.Reflection) []model.Reflection) ([]model.Reflection, error)
}

// Orchestrator pulls, merges and pushes. At most one sync runs at a time;
// extra calls are rejected, not queued.
type Orchestrator struct {
	local   Local
	remote  remote.Client
	logger  *zap.Logger
	metrics *Metrics
	status  *Status
	running atomic.Bool
	now     func() time.Time
}

// NewOrchestrator wires a sync between local and rc. logger and metrics may
// be nil.
func NewOrchestrator(local Local, rc remote.Client, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		local:   local,
		remote:  rc,
		logger:  logger.Named("sync"),
		metrics: metrics,
		status:  NewStatus(DefaultStatusReset),
		now:     time.Now,
	}
}

// Status returns the sync indicator.
func (o *Orchestrator) Status() *Status { return o.status }

// Running reports whether a sync is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Sync runs one pull/merge/push cycle. It never returns an error; every
// failure is reported in the result and local data stays usable.
func (o *Orchestrator) Sync(ctx context.Context) Result {
	res := Result{Errors: []string{}, StartedAt: o.now().UTC()}

	if !o.running.CompareAndSwap(false, true) {
		res.Errors = append(res.Errors, ErrSyncInProgress.Error())
		res.FinishedAt = o.now().UTC()
		o.metrics.Syncs.WithLabelValues(OutcomeRejected).Inc()
		return res
	}
	defer o.running.Store(false)

	o.status.begin()
	res = o.run(ctx, res)
	res.FinishedAt = o.now().UTC()
	o.status.finish(res)

	if res.Success {
		o.metrics.LastSuccess.Set(float64(res.FinishedAt.Unix()))
		o.logger.Info("sync complete",
			zap.Int("pulled", res.PulledCount),
			zap.Int("pushed", res.PushedCount))
	} else {
		o.logger.Warn("sync failed", zap.Strings("errors", res.Errors))
	}
	return res
}

func (o *Orchestrator) run(ctx context.Context, res Result) Result {
	if !o.remote.Available() {
		res.Errors = append(res.Errors, remote.ErrNotConfigured.Error())
		o.metrics.Syncs.WithLabelValues(OutcomeUnconfigured).Inc()
		return res
	}

	userID, err := o.remote.ResolveUserID(ctx)
	if err != nil {
		res.Errors = append(res.Errors, "resolve user: "+err.Error())
		o.metrics.Syncs.WithLabelValues(OutcomeFailure).Inc()
		return res
	}

	pulled, err := o.remote.FetchAll(ctx, userID)
	if err != nil {
		res.Errors = append(res.Errors, "pull: "+err.Error())
		o.metrics.Syncs.WithLabelValues(OutcomeFailure).Inc()
		return res
	}
	res.PulledCount = len(pulled)
	o.metrics.Pulled.Add(float64(len(pulled)))

	merged, err := o.local.Reconcile(ctx, func(local []model.Reflection) []model.Reflection {
		return Merge(local, pulled)
	})
	if err != nil {
		res.Errors = append(res.Errors, "merge: "+err.Error())
		o.metrics.Syncs.WithLabelValues(OutcomeFailure).Inc()
		return res
	}

	// The merge stands even if the push fails.
	pushed, err := o.remote.UpsertMany(ctx, userID, merged)
	if err != nil {
		res.Errors = append(res.Errors, "push: "+err.Error())
		o.metrics.Syncs.WithLabelValues(OutcomeFailure).Inc()
		return res
	}
	res.PushedCount = pushed
	o.metrics.Pushed.Add(float64(pushed))

	res.Success = true
	o.metrics.Syncs.WithLabelValues(OutcomeSuccess).Inc()
	return res
}

// Run syncs immediately and then every interval until ctx is done.
// onResult, when set, sees every result.
func (o *Orchestrator) Run(ctx context.Context, interval time.Duration, onResult func(Result)) error {
	if interval <= 0 {
		return errors.New("sync interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		res := o.Sync(ctx)
		if onResult != nil {
			onResult(res)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
