// Package remote is the gateway to the hosted reflection service.
//
// Implementations never retry and never panic on backend failures; every
// failure comes back as a *Error so callers can render it and move on.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/wisdom/internal/model"
)

var (
	// ErrNotConfigured means no backend is set up; sync is unavailable.
	ErrNotConfigured = errors.New("remote not configured")

	// ErrTimeout means the call did not finish within the client timeout.
	ErrTimeout = errors.New("remote call timed out")

	// ErrUnavailable means the circuit breaker is rejecting calls.
	ErrUnavailable = errors.New("remote temporarily unavailable")

	// ErrTokenRejected means the auth service refused the access token.
	ErrTokenRejected = errors.New("access token rejected")
)

// Error is a failed remote operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client is the capability interface for the hosted record service.
type Client interface {
	// Available reports whether the backend has connection configuration.
	Available() bool

	// FetchAll returns the user's remote reflections, most recently updated first.
	FetchAll(ctx context.Context, userID string) ([]model.Reflection, error)

	// UpsertMany inserts or replaces records by id and returns how many were sent.
	UpsertMany(ctx context.Context, userID string, records []model.Reflection) (int, error)

	// Delete removes one record by id.
	Delete(ctx context.Context, id string) error

	// ResolveUserID returns the signed-in user's id, or the device id.
	ResolveUserID(ctx context.Context) (string, error)
}

// Identity supplies the stable per-device id used when nobody is signed in.
type Identity interface {
	DeviceID(ctx context.Context) (string, error)
}

// Unconfigured is the Client used when no backend is set up.
type Unconfigured struct {
	identity Identity
}

// NewUnconfigured returns a Client whose remote operations all fail
// immediately with ErrNotConfigured.
func NewUnconfigured(identity Identity) *Unconfigured {
	return &Unconfigured{identity: identity}
}

func (u *Unconfigured) Available() bool { return false }

func (u *Unconfigured) FetchAll(ctx context.Context, userID string) ([]model.Reflection, error) {
	return nil, &Error{Op: "fetch", Err: ErrNotConfigured}
}

func (u *Unconfigured) UpsertMany(ctx context.Context, userID string, records []model.Reflection) (int, error) {
	return 0, &Error{Op: "upsert", Err: ErrNotConfigured}
}

func (u *Unconfigured) Delete(ctx context.Context, id string) error {
	return &Error{Op: "delete", Err: ErrNotConfigured}
}

func (u *Unconfigured) ResolveUserID(ctx context.Context) (string, error) {
	if u.identity == nil {
		return "", &Error{Op: "resolve user", Err: ErrNotConfigured}
	}
	return u.identity.DeviceID(ctx)
}
