package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/rcliao/wisdom/internal/model"
)

const (
	DefaultTable   = "saved_reflections"
	DefaultTimeout = 5 * time.Second
)

// Config holds connection settings for the hosted service.
type Config struct {
	URL         string
	Key         string
	AccessToken string // optional; signed-in user's JWT
	Table       string
	Timeout     time.Duration
	Breaker     BreakerConfig
}

// Configured reports whether URL and key are both set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Key) != ""
}

// BreakerConfig tunes the circuit breaker in front of the service.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// New returns a Supabase client when cfg is configured and an Unconfigured
// client otherwise.
func New(cfg Config, identity Identity, logger *zap.Logger) (Client, error) {
	if !cfg.Configured() {
		return NewUnconfigured(identity), nil
	}
	return NewSupabase(cfg, identity, logger)
}

// Supabase talks to a PostgREST table through supabase-go.
type Supabase struct {
	client   *supabase.Client
	table    string
	timeout  time.Duration
	token    string
	identity Identity
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger

	// lookupUser resolves an access token to a user id.
	lookupUser func(token string) (string, error)

	mu     sync.Mutex
	userID string
}

// NewSupabase creates a client for the configured project.
func NewSupabase(cfg Config, identity Identity, logger *zap.Logger) (*Supabase, error) {
	if !cfg.Configured() {
		return nil, &Error{Op: "connect", Err: ErrNotConfigured}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}

	s := &Supabase{
		client:   client,
		table:    cfg.Table,
		timeout:  cfg.Timeout,
		token:    cfg.AccessToken,
		identity: identity,
		logger:   logger.Named("remote"),
	}
	if s.table == "" {
		s.table = DefaultTable
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	s.lookupUser = func(token string) (string, error) {
		user, err := client.Auth.WithToken(token).GetUser()
		if err != nil {
			return "", classifyAuthError(err)
		}
		return user.ID.String(), nil
	}

	bc := cfg.Breaker
	if bc.MinRequests == 0 {
		bc = DefaultBreakerConfig()
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "supabase:" + s.table,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		// A rejected token is an answer from a healthy service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrTokenRejected)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return s, nil
}

func (s *Supabase) Available() bool { return true }

// call runs fn through the breaker and bounds it by the client timeout.
// A call abandoned on timeout keeps running in the background until the
// underlying HTTP request returns.
func (s *Supabase) call(ctx context.Context, op string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		done <- err
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return &Error{Op: op, Err: ErrUnavailable}
		default:
			return &Error{Op: op, Err: err}
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Error{Op: op, Err: ErrTimeout}
		}
		return &Error{Op: op, Err: ctx.Err()}
	}
}

func (s *Supabase) FetchAll(ctx context.Context, userID string) ([]model.Reflection, error) {
	var rows []row
	err := s.call(ctx, "fetch", func() error {
		body, _, err := s.client.From(s.table).
			Select("*", "", false).
			Eq("user_id", userID).
			Order("updated_at", &postgrest.OrderOpts{Ascending: false}).
			Execute()
		if err != nil {
			return err
		}
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Reflection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.reflection())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveTime().After(out[j].EffectiveTime())
	})

	s.logger.Debug("fetched remote reflections", zap.String("user", userID), zap.Int("count", len(out)))
	return out, nil
}

func (s *Supabase) UpsertMany(ctx context.Context, userID string, records []model.Reflection) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]row, 0, len(records))
	for _, r := range records {
		rows = append(rows, newRow(userID, r))
	}

	err := s.call(ctx, "upsert", func() error {
		_, _, err := s.client.From(s.table).
			Upsert(rows, "id", "minimal", "").
			Execute()
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("upserted remote reflections", zap.String("user", userID), zap.Int("count", len(rows)))
	return len(rows), nil
}

func (s *Supabase) Delete(ctx context.Context, id string) error {
	userID, err := s.ResolveUserID(ctx)
	if err != nil {
		return err
	}
	return s.call(ctx, "delete", func() error {
		_, _, err := s.client.From(s.table).
			Delete("minimal", "").
			Eq("id", id).
			Eq("user_id", userID).
			Execute()
		return err
	})
}

// ResolveUserID validates the configured access token once and caches the
// result. Without a token, or when the auth service rejects it, the device
// id is used instead. Network failures, timeouts and an open breaker are
// returned as errors and nothing is cached, so a later call retries.
func (s *Supabase) ResolveUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != "" {
		return s.userID, nil
	}

	if s.token != "" {
		var id string
		err := s.call(ctx, "resolve user", func() error {
			var err error
			id, err = s.lookupUser(s.token)
			return err
		})
		switch {
		case err == nil && id != "":
			s.userID = id
			return id, nil
		case err == nil:
			return "", &Error{Op: "resolve user", Err: errors.New("auth service returned no user id")}
		case errors.Is(err, ErrTokenRejected):
			s.logger.Warn("access token rejected, using device id", zap.Error(err))
		default:
			return "", err
		}
	}

	if s.identity == nil {
		return "", &Error{Op: "resolve user", Err: errors.New("no device identity")}
	}
	id, err := s.identity.DeviceID(ctx)
	if err != nil {
		return "", &Error{Op: "resolve user", Err: err}
	}
	s.userID = id
	return id, nil
}

var authStatus = regexp.MustCompile(`^response status code (\d{3})`)

// classifyAuthError marks 401 and 403 answers from the auth service as
// ErrTokenRejected. Anything else is left as a transport or server failure.
func classifyAuthError(err error) error {
	m := authStatus.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, _ := strconv.Atoi(m[1])
	if code == 401 || code == 403 {
		return fmt.Errorf("%w: %v", ErrTokenRejected, err)
	}
	return err
}
