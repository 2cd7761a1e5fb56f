// Package wisdom ties the quote catalog, the local store and remote sync
// together behind the operations the CLI exposes.
package wisdom

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/wisdom/internal/catalog"
	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/remote"
	"github.com/rcliao/wisdom/internal/selection"
	"github.com/rcliao/wisdom/internal/store"
	"github.com/rcliao/wisdom/internal/syncer"
)

var (
	// ErrEmptyCatalog is returned by NextQuote when there is nothing to serve.
	ErrEmptyCatalog = errors.New("quote catalog is empty")

	// ErrUnknownQuote is returned when saving a quote id the catalog lacks.
	ErrUnknownQuote = errors.New("unknown quote")
)

// Engine is the application facade. Local mutations are pushed to the
// remote service in the background; their failures never fail the
// mutation.
type Engine struct {
	catalog *catalog.Catalog
	store   *store.Store
	remote  remote.Client
	sync    *syncer.Orchestrator
	pusher  *syncer.Pusher
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Options configures New. Zero values are fine.
type Options struct {
	Logger  *zap.Logger
	Metrics *syncer.Metrics
	Rand    *rand.Rand
}

// New builds an engine over an open store.
func New(cat *catalog.Catalog, st *store.Store, rc remote.Client, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = syncer.NewMetrics(nil)
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		catalog: cat,
		store:   st,
		remote:  rc,
		sync:    syncer.NewOrchestrator(st, rc, logger, metrics),
		pusher:  syncer.NewPusher(rc, logger, metrics),
		logger:  logger,
		rng:     rng,
	}
}

// Close waits for pending pushes and closes the store.
func (e *Engine) Close() error {
	e.sync.Status().Stop()
	perr := e.pusher.Close()
	serr := e.store.Close()
	return errors.Join(perr, serr)
}

func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

func (e *Engine) Store() *store.Store { return e.store }

func (e *Engine) Remote() remote.Client { return e.remote }

func (e *Engine) Orchestrator() *syncer.Orchestrator { return e.sync }

// PushErrors reports failed background pushes.
func (e *Engine) PushErrors() <-chan error { return e.pusher.Errors() }

// NextQuote picks a quote that was not served recently and records it.
func (e *Engine) NextQuote(ctx context.Context, categories []string) (model.Quote, error) {
	e.rngMu.Lock()
	q, ok := selection.Select(e.rng, e.catalog.All(), e.store.RecentQuoteIDs(), categories)
	e.rngMu.Unlock()
	if !ok {
		return model.Quote{}, ErrEmptyCatalog
	}
	if err := e.store.RecordServed(ctx, q.ID); err != nil {
		return model.Quote{}, fmt.Errorf("record served quote: %w", err)
	}
	return q, nil
}

// SaveParams describes a reflection to save.
type SaveParams struct {
	QuoteID  string
	UserNote string
	Tags     []string
	Context  string
}

// Save stores a reflection on the catalog quote p.QuoteID.
func (e *Engine) Save(ctx context.Context, p SaveParams) (*model.Reflection, error) {
	q, ok := e.catalog.ByID(p.QuoteID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuote, p.QuoteID)
	}
	return e.SaveQuote(ctx, store.NewReflection{Quote: q, UserNote: p.UserNote, Tags: p.Tags, Context: p.Context})
}

// SaveQuote stores a reflection on an arbitrary quote snapshot.
func (e *Engine) SaveQuote(ctx context.Context, nr store.NewReflection) (*model.Reflection, error) {
	r, err := e.store.Create(ctx, nr)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("saved reflection", zap.String("id", r.ID), zap.String("quote", r.Quote.ID))
	e.pushAll()
	return r, nil
}

// EditNote replaces a reflection's note. ok is false when id is unknown or
// the note is unchanged; only real changes are pushed.
func (e *Engine) EditNote(ctx context.Context, id, note string) (bool, error) {
	return e.afterMutation(e.store.Update(ctx, id, store.Patch{UserNote: &note}))
}

// SetTags replaces a reflection's tags.
func (e *Engine) SetTags(ctx context.Context, id string, tags []string) (bool, error) {
	return e.afterMutation(e.store.Update(ctx, id, store.Patch{Tags: &tags}))
}

// AddTag returns store.ErrTagLimit when the reflection is full.
func (e *Engine) AddTag(ctx context.Context, id, tag string) (bool, error) {
	return e.afterMutation(e.store.AddTag(ctx, id, tag))
}

func (e *Engine) RemoveTag(ctx context.Context, id, tag string) (bool, error) {
	return e.afterMutation(e.store.RemoveTag(ctx, id, tag))
}

func (e *Engine) afterMutation(ok bool, err error) (bool, error) {
	if err != nil || !ok {
		return ok, err
	}
	e.pushAll()
	return true, nil
}

// Delete removes a reflection locally and, if it existed, remotely.
// A record still present on another device comes back on the next sync.
func (e *Engine) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := e.store.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	e.pusher.Delete(id)
	return true, nil
}

// SyncNow runs one sync.
func (e *Engine) SyncNow(ctx context.Context) syncer.Result {
	return e.sync.Sync(ctx)
}

// Import merges records into the store by last write wins and pushes the
// result. Importing the same export twice changes nothing.
func (e *Engine) Import(ctx context.Context, records []model.Reflection) (int, error) {
	for i := range records {
		if records[i].ID == "" {
			return 0, fmt.Errorf("record %d: missing id", i)
		}
		if records[i].SavedAt.IsZero() {
			return 0, fmt.Errorf("record %s: missing savedAt", records[i].ID)
		}
		records[i].Tags = model.NormalizeTags(records[i].Tags)
	}
	merged, err := e.store.Reconcile(ctx, func(local []model.Reflection) []model.Reflection {
		return syncer.Merge(local, records)
	})
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	e.pusher.PushAll(merged)
	return len(records), nil
}

func (e *Engine) pushAll() {
	if !e.remote.Available() {
		return
	}
	e.pusher.PushAll(e.store.All())
}
