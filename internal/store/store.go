// Package store provides the local reflection store and its persistence backends.
package store

import (
	"context"

	"github.com/rcliao/wisdom/internal/model"
)

// State is everything the store persists.
type State struct {
	Reflections    []model.Reflection
	RecentQuoteIDs []string
	Preferences    model.Preferences
	DeviceID       string
}

func (st State) clone() State {
	c := st
	c.Reflections = model.CloneAll(st.Reflections)
	c.RecentQuoteIDs = append([]string(nil), st.RecentQuoteIDs...)
	if st.Preferences.Enabled != nil {
		c.Preferences.Enabled = make(map[string]bool, len(st.Preferences.Enabled))
		for k, v := range st.Preferences.Enabled {
			c.Preferences.Enabled[k] = v
		}
	}
	return c
}

// Backend is durable storage for State.
type Backend interface {
	// Load returns the persisted state, or a zero State if nothing was saved yet.
	Load(ctx context.Context) (State, error)

	// Save replaces the persisted state. It must be durable when it returns.
	Save(ctx context.Context, st State) error

	// Close releases the backend.
	Close() error
}

// NewReflection holds the caller-supplied fields of a new reflection.
type NewReflection struct {
	Quote    model.Quote
	UserNote string
	Tags     []string
	Context  string
}

// Patch holds optional changes to a reflection. Nil fields are left alone.
type Patch struct {
	UserNote *string
	Tags     *[]string
}

// ListParams holds parameters for listing reflections.
type ListParams struct {
	Category string
	Tags     []string
	Limit    int // 0 means no limit
}
