package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rcliao/wisdom/internal/model"
)

type fixedIdentity string

func (f fixedIdentity) DeviceID(ctx context.Context) (string, error) { return string(f), nil }

// fakePostgREST records requests against the reflections table.
type fakePostgREST struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	hits     atomic.Int32

	status  int
	payload string
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.hits.Add(1)
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(b))
	status, payload := f.status, f.payload
	f.mu.Unlock()

	if status >= 400 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, `{"code":"XX000","message":"boom","details":"","hint":""}`)
		return
	}
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, payload)
	case http.MethodPost:
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakePostgREST) last() (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func newTestSupabase(t *testing.T, h http.Handler, mutate func(*Config)) *Supabase {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := Config{URL: srv.URL, Key: "anon-key", Timeout: time.Second}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewSupabase(cfg, fixedIdentity("anon-device"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewReturnsUnconfiguredWithoutCredentials(t *testing.T) {
	c, err := New(Config{URL: "https://example.supabase.co"}, fixedIdentity("dev"), nil)
	require.NoError(t, err)
	assert.False(t, c.Available())
	_, ok := c.(*Unconfigured)
	assert.True(t, ok)
}

func TestUnconfiguredShortCircuits(t *testing.T) {
	ctx := context.Background()
	c := NewUnconfigured(fixedIdentity("anon-1"))

	_, err := c.FetchAll(ctx, "u")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.UpsertMany(ctx, "u", []model.Reflection{{ID: "a"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.ErrorIs(t, c.Delete(ctx, "a"), ErrNotConfigured)

	var rerr *Error
	require.ErrorAs(t, c.Delete(ctx, "a"), &rerr)
	assert.Equal(t, "delete", rerr.Op)

	id, err := c.ResolveUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anon-1", id)
}

func TestFetchAllParsesRows(t *testing.T) {
	fake := &fakePostgREST{payload: `[
		{"id":"a","user_id":"u1","quote_id":"q1","quote_data":{"id":"q1","text":"hello","category":"wisdom","weight":1},
		 "user_note":"world","tags":["x"],"saved_at":"2025-01-01T00:00:00+00:00","updated_at":"2025-01-03T00:00:00+00:00"},
		{"id":"b","user_id":"u1","quote_id":"q2","quote_data":{"text":"plain"},
		 "user_note":null,"tags":null,"saved_at":"2025-01-02T00:00:00","updated_at":"2025-01-02T00:00:00"}
	]`}
	c := newTestSupabase(t, fake, nil)

	got, err := c.FetchAll(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "world", got[0].UserNote)
	require.NotNil(t, got[0].UpdatedAt)
	assert.True(t, got[0].UpdatedAt.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"x"}, got[0].Tags)

	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "q2", got[1].Quote.ID, "quote id falls back to the quote_id column")
	assert.Nil(t, got[1].UpdatedAt, "updated_at equal to saved_at means never edited")
	assert.Empty(t, got[1].UserNote)

	req, _ := fake.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.True(t, strings.HasSuffix(req.URL.Path, "/rest/v1/"+DefaultTable), req.URL.Path)
	assert.Equal(t, "eq.u1", req.URL.Query().Get("user_id"))
	assert.Contains(t, req.URL.Query().Get("order"), "updated_at.desc")
	assert.Equal(t, "anon-key", req.Header.Get("apikey"))
}

func TestUpsertManySendsRows(t *testing.T) {
	fake := &fakePostgREST{}
	c := newTestSupabase(t, fake, func(cfg *Config) { cfg.Table = "reflections" })

	saved := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := saved.Add(48 * time.Hour)
	n, err := c.UpsertMany(context.Background(), "u1", []model.Reflection{
		{ID: "a", Quote: model.Quote{ID: "q1", Text: "t"}, UserNote: "n", SavedAt: saved, UpdatedAt: &updated},
		{ID: "b", Quote: model.Quote{ID: "q2"}, SavedAt: saved},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	req, body := fake.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.True(t, strings.HasSuffix(req.URL.Path, "/rest/v1/reflections"), req.URL.Path)
	assert.Equal(t, "id", req.URL.Query().Get("on_conflict"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "u1", rows[0]["user_id"])
	assert.Equal(t, "q1", rows[0]["quote_id"])
	assert.Equal(t, "n", rows[0]["user_note"])
	assert.Equal(t, "2025-01-03T00:00:00Z", rows[0]["updated_at"])
	assert.Nil(t, rows[1]["user_note"])
	assert.Equal(t, "2025-01-01T00:00:00Z", rows[1]["updated_at"], "unedited rows carry saved_at")
}

func TestUpsertManyEmptySkipsNetwork(t *testing.T) {
	fake := &fakePostgREST{}
	c := newTestSupabase(t, fake, nil)

	n, err := c.UpsertMany(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, fake.hits.Load())
}

func TestDeleteScopesToUser(t *testing.T) {
	fake := &fakePostgREST{}
	c := newTestSupabase(t, fake, nil)

	require.NoError(t, c.Delete(context.Background(), "a"))

	req, _ := fake.last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "eq.a", req.URL.Query().Get("id"))
	assert.Equal(t, "eq.anon-device", req.URL.Query().Get("user_id"))
}

func TestBackendErrorIsTyped(t *testing.T) {
	fake := &fakePostgREST{status: http.StatusInternalServerError}
	c := newTestSupabase(t, fake, nil)

	_, err := c.FetchAll(context.Background(), "u1")
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "fetch", rerr.Op)
}

func TestTimeoutIsOrdinaryFailure(t *testing.T) {
	release := make(chan struct{})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		io.WriteString(w, "[]")
	})
	c := newTestSupabase(t, slow, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := c.FetchAll(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	fake := &fakePostgREST{status: http.StatusServiceUnavailable}
	c := newTestSupabase(t, fake, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			FailureThreshold: 1,
			MinRequests:      1,
		}
	})

	_, err := c.FetchAll(context.Background(), "u1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))

	_, err = c.FetchAll(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), fake.hits.Load(), "open breaker must not reach the backend")
}

func TestResolveUserID(t *testing.T) {
	ctx := context.Background()

	t.Run("no token uses device id", func(t *testing.T) {
		c := newTestSupabase(t, &fakePostgREST{}, nil)
		id, err := c.ResolveUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "anon-device", id)
	})

	t.Run("valid token uses account id and caches it", func(t *testing.T) {
		c := newTestSupabase(t, &fakePostgREST{}, func(cfg *Config) { cfg.AccessToken = "jwt" })
		calls := 0
		c.lookupUser = func(token string) (string, error) {
			calls++
			assert.Equal(t, "jwt", token)
			return "user-123", nil
		}
		for i := 0; i < 3; i++ {
			id, err := c.ResolveUserID(ctx)
			require.NoError(t, err)
			assert.Equal(t, "user-123", id)
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("rejected token falls back to device id", func(t *testing.T) {
		c := newTestSupabase(t, &fakePostgREST{}, func(cfg *Config) { cfg.AccessToken = "expired" })
		c.lookupUser = func(string) (string, error) {
			return "", classifyAuthError(errors.New(`response status code 401: {"msg":"invalid JWT"}`))
		}
		id, err := c.ResolveUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "anon-device", id)
	})

	t.Run("transient failure is an error and is not cached", func(t *testing.T) {
		c := newTestSupabase(t, &fakePostgREST{}, func(cfg *Config) { cfg.AccessToken = "jwt" })
		calls := 0
		c.lookupUser = func(string) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("dial tcp: connection refused")
			}
			return "user-123", nil
		}

		id, err := c.ResolveUserID(ctx)
		require.Error(t, err)
		assert.Empty(t, id)
		var rerr *Error
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "resolve user", rerr.Op)
		assert.False(t, errors.Is(err, ErrTokenRejected))

		id, err = c.ResolveUserID(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-123", id)
	})

	t.Run("server error is not a rejection", func(t *testing.T) {
		c := newTestSupabase(t, &fakePostgREST{}, func(cfg *Config) { cfg.AccessToken = "jwt" })
		c.lookupUser = func(string) (string, error) {
			return "", classifyAuthError(errors.New("response status code 500: boom"))
		}
		_, err := c.ResolveUserID(ctx)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrTokenRejected))
	})
}

func TestClassifyAuthError(t *testing.T) {
	tests := []struct {
		msg      string
		rejected bool
	}{
		{"response status code 401: invalid JWT", true},
		{"response status code 403", true},
		{"response status code 500: boom", false},
		{"dial tcp: connection refused", false},
	}
	for _, tt := range tests {
		err := classifyAuthError(errors.New(tt.msg))
		assert.Equal(t, tt.rejected, errors.Is(err, ErrTokenRejected), tt.msg)
		assert.Contains(t, err.Error(), tt.msg)
	}
}

func TestRowRoundTripKeepsUnsetUpdatedAt(t *testing.T) {
	saved := time.Date(2025, 1, 1, 12, 30, 0, 500, time.UTC)
	r := model.Reflection{ID: "a", Quote: model.Quote{ID: "q"}, SavedAt: saved}

	b, err := json.Marshal(newRow("u", r))
	require.NoError(t, err)
	var back row
	require.NoError(t, json.Unmarshal(b, &back))

	got := back.reflection()
	assert.True(t, got.SavedAt.Equal(saved))
	assert.Nil(t, got.UpdatedAt)
}
