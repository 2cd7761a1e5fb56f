package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/remote"
	"github.com/rcliao/wisdom/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRemote is an in-memory remote.Client.
type fakeRemote struct {
	mu        sync.Mutex
	records   map[string]model.Reflection
	fetchErr  error
	upsertErr error
	deleteErr error
	upserts   int
	deletes   []string

	// fetchGate, when set, blocks FetchAll until it is closed.
	fetchGate chan struct{}
	fetching  chan struct{}
}

func newFakeRemote(rs ...model.Reflection) *fakeRemote {
	f := &fakeRemote{records: map[string]model.Reflection{}}
	for _, r := range rs {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeRemote) Available() bool { return true }

func (f *fakeRemote) FetchAll(ctx context.Context, userID string) ([]model.Reflection, error) {
	if f.fetchGate != nil {
		close(f.fetching)
		<-f.fetchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, &remote.Error{Op: "fetch", Err: f.fetchErr}
	}
	var out []model.Reflection
	for _, r := range f.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (f *fakeRemote) UpsertMany(ctx context.Context, userID string, records []model.Reflection) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return 0, &remote.Error{Op: "upsert", Err: f.upsertErr}
	}
	f.upserts++
	for _, r := range records {
		f.records[r.ID] = r.Clone()
	}
	return len(records), nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return &remote.Error{Op: "delete", Err: f.deleteErr}
	}
	f.deletes = append(f.deletes, id)
	delete(f.records, id)
	return nil
}

func (f *fakeRemote) ResolveUserID(ctx context.Context) (string, error) { return "u1", nil }

func (f *fakeRemote) get(id string) (model.Reflection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok
}

func day(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }

func rec(id, note string, saved time.Time, updated *time.Time) model.Reflection {
	return model.Reflection{
		ID:        id,
		Quote:     model.Quote{ID: "q-" + id, Text: "text " + id, Category: "wisdom", Weight: 1},
		UserNote:  note,
		SavedAt:   saved,
		UpdatedAt: updated,
	}
}

func ptr(t time.Time) *time.Time { return &t }

func newTestStore(t *testing.T, rs ...model.Reflection) (*store.Store, *store.MemoryBackend) {
	t.Helper()
	b := store.NewMemoryBackend(store.State{Reflections: rs})
	s, err := store.Open(context.Background(), b)
	require.NoError(t, err)
	return s, b
}

func TestMergeLastWriteWins(t *testing.T) {
	local := []model.Reflection{rec("a", "hello", day(1), nil)}
	remoteRecs := []model.Reflection{
		rec("a", "world", day(1), ptr(day(3))),
		rec("b", "", day(2), nil),
	}

	got := Merge(local, remoteRecs)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID, "newest savedAt first")
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "world", got[1].UserNote)
}

func TestMergeTieKeepsLocal(t *testing.T) {
	local := []model.Reflection{rec("a", "local", day(1), ptr(day(2)))}
	remoteRecs := []model.Reflection{rec("a", "remote", day(1), ptr(day(2)))}

	got := Merge(local, remoteRecs)
	require.Len(t, got, 1)
	assert.Equal(t, "local", got[0].UserNote)
}

func TestMergeOlderRemoteLoses(t *testing.T) {
	local := []model.Reflection{rec("a", "new", day(1), ptr(day(5)))}
	remoteRecs := []model.Reflection{rec("a", "old", day(1), ptr(day(4)))}

	got := Merge(local, remoteRecs)
	assert.Equal(t, "new", got[0].UserNote)
}

func TestMergeIsDeterministic(t *testing.T) {
	local := []model.Reflection{rec("a", "", day(1), nil), rec("c", "", day(1), nil)}
	remoteRecs := []model.Reflection{rec("b", "", day(1), nil)}

	first := Merge(local, remoteRecs)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Merge(local, remoteRecs))
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids(first))
}

func TestMergeIdempotent(t *testing.T) {
	local := []model.Reflection{rec("a", "x", day(1), ptr(day(2))), rec("b", "", day(3), nil)}
	remoteRecs := []model.Reflection{rec("a", "y", day(1), ptr(day(4))), rec("c", "", day(2), nil)}

	once := Merge(local, remoteRecs)
	assert.Equal(t, once, Merge(once, remoteRecs))
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	local := []model.Reflection{{ID: "a", Tags: []string{"x"}, SavedAt: day(1)}}
	got := Merge(local, nil)
	got[0].Tags[0] = "changed"
	assert.Equal(t, "x", local[0].Tags[0])
}

func ids(rs []model.Reflection) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestSyncMergesAndPushes(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, rec("a", "hello", day(1), nil))
	rc := newFakeRemote(rec("a", "world", day(1), ptr(day(3))), rec("b", "", day(2), nil))

	reg := prometheus.NewRegistry()
	o := NewOrchestrator(st, rc, nil, NewMetrics(reg))

	res := o.Sync(ctx)
	require.True(t, res.Success, res.Errors)
	assert.Equal(t, 2, res.PulledCount)
	assert.Equal(t, 2, res.PushedCount)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)

	all := st.All()
	require.Len(t, all, 2)
	got, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, "world", got.UserNote)

	pushed, ok := rc.get("b")
	require.True(t, ok)
	assert.Equal(t, "b", pushed.ID)

	assert.Equal(t, float64(1), testutil.ToFloat64(o.metrics.Syncs.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(2), testutil.ToFloat64(o.metrics.Pulled))
	assert.Equal(t, StateSuccess, o.Status().State())
	o.Status().Stop()
}

func TestSyncPullFailureLeavesLocalUntouched(t *testing.T) {
	st, b := newTestStore(t, rec("a", "hello", day(1), nil))
	rc := newFakeRemote()
	rc.fetchErr = errors.New("network down")

	o := NewOrchestrator(st, rc, nil, nil)
	res := o.Sync(context.Background())
	defer o.Status().Stop()

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "network down")
	assert.Zero(t, b.Saves())
	assert.Zero(t, rc.upserts)
	assert.Equal(t, StateError, o.Status().State())
}

func TestSyncPushFailureKeepsMerge(t *testing.T) {
	st, _ := newTestStore(t, rec("a", "hello", day(1), nil))
	rc := newFakeRemote(rec("b", "", day(2), nil))
	rc.upsertErr = errors.New("quota")

	o := NewOrchestrator(st, rc, nil, nil)
	res := o.Sync(context.Background())
	defer o.Status().Stop()

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.PulledCount)
	assert.Zero(t, res.PushedCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "push")

	_, ok := st.Get("b")
	assert.True(t, ok, "merged record stays local after a failed push")
}

func TestSyncUnconfigured(t *testing.T) {
	st, b := newTestStore(t)
	rc := remote.NewUnconfigured(st)

	reg := prometheus.NewRegistry()
	o := NewOrchestrator(st, rc, nil, NewMetrics(reg))
	res := o.Sync(context.Background())
	defer o.Status().Stop()

	assert.False(t, res.Success)
	assert.Equal(t, []string{remote.ErrNotConfigured.Error()}, res.Errors)
	assert.Zero(t, b.Saves())
	assert.Equal(t, float64(1), testutil.ToFloat64(o.metrics.Syncs.WithLabelValues(OutcomeUnconfigured)))
}

func TestSyncRejectsConcurrentCall(t *testing.T) {
	st, b := newTestStore(t, rec("local", "mine", day(1), nil))
	rc := newFakeRemote(rec("a", "", day(1), nil))
	rc.fetchGate = make(chan struct{})
	rc.fetching = make(chan struct{})

	o := NewOrchestrator(st, rc, nil, nil)
	defer o.Status().Stop()

	first := make(chan Result, 1)
	go func() { first <- o.Sync(context.Background()) }()
	<-rc.fetching

	assert.True(t, o.Running())
	assert.Equal(t, StateSyncing, o.Status().State())

	before := st.All()
	saves := b.Saves()

	second := o.Sync(context.Background())
	assert.False(t, second.Success)
	assert.Equal(t, []string{ErrSyncInProgress.Error()}, second.Errors)
	assert.Equal(t, before, st.All(), "a rejected sync leaves local records alone")
	assert.Equal(t, saves, b.Saves())

	close(rc.fetchGate)
	res := <-first
	assert.True(t, res.Success, res.Errors)
	assert.False(t, o.Running())
}

func TestStatusResetsToIdle(t *testing.T) {
	s := NewStatus(20 * time.Millisecond)
	assert.Equal(t, StateIdle, s.State())

	s.begin()
	assert.Equal(t, StateSyncing, s.State())
	s.finish(Result{Success: false, Errors: []string{"x"}})
	assert.Equal(t, StateError, s.State())

	assert.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, 5*time.Millisecond)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, last.Errors)
}

func TestStatusNewSyncCancelsReset(t *testing.T) {
	s := NewStatus(20 * time.Millisecond)
	s.begin()
	s.finish(Result{Success: true})
	s.begin()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateSyncing, s.State())
	s.Stop()
}

func TestRunStopsOnCancel(t *testing.T) {
	st, _ := newTestStore(t)
	rc := newFakeRemote(rec("a", "", day(1), nil))
	o := NewOrchestrator(st, rc, nil, nil)
	defer o.Status().Stop()

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var results []Result
	done := make(chan error, 1)
	go func() {
		done <- o.Run(ctx, 10*time.Millisecond, func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRejectsBadInterval(t *testing.T) {
	o := NewOrchestrator(nil, newFakeRemote(), nil, nil)
	assert.Error(t, o.Run(context.Background(), 0, nil))
}

func TestPusherPushesInOrder(t *testing.T) {
	rc := newFakeRemote()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := NewPusher(rc, nil, m)

	assert.True(t, p.PushAll([]model.Reflection{rec("a", "", day(1), nil), rec("b", "", day(2), nil)}))
	assert.True(t, p.Delete("a"))
	require.NoError(t, p.Close())

	_, ok := rc.get("a")
	assert.False(t, ok, "delete ran after the upsert")
	_, ok = rc.get("b")
	assert.True(t, ok)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Pushed))

	assert.False(t, p.PushAll(nil), "closed pusher accepts nothing")
	require.NoError(t, p.Close())
}

func TestPusherReportsFailures(t *testing.T) {
	rc := newFakeRemote()
	rc.deleteErr = errors.New("denied")
	m := NewMetrics(nil)
	p := NewPusher(rc, nil, m)

	require.True(t, p.Delete("gone"))
	require.NoError(t, p.Close())

	var got []error
	for err := range p.Errors() {
		got = append(got, err)
	}
	require.Len(t, got, 1)
	var perr *PushError
	require.ErrorAs(t, got[0], &perr)
	assert.Equal(t, "delete", perr.Op)
	assert.Equal(t, "gone", perr.ID)
	assert.ErrorContains(t, got[0], "denied")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PushFailures.WithLabelValues("delete")))
}

func TestPusherSkipsUnconfiguredRemote(t *testing.T) {
	p := NewPusher(remote.NewUnconfigured(nil), nil, nil)
	assert.False(t, p.PushAll([]model.Reflection{rec("a", "", day(1), nil)}))
	assert.False(t, p.Delete("a"))
	require.NoError(t, p.Close())
}
