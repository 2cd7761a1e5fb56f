package store

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/selection"
)

// Store owns the device's reflections and related settings.
//
// Every mutation builds the next state, saves it through the backend and
// only then makes it visible, so a failed save leaves the store unchanged.
type Store struct {
	mu      sync.RWMutex
	backend Backend
	state   State
	entropy *rand.Rand
	now     func() time.Time
}

// Open loads the persisted state from backend.
func Open(ctx context.Context, backend Backend) (*Store, error) {
	st, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if st.Preferences.RotationIntervalSeconds == 0 && st.Preferences.Enabled == nil {
		st.Preferences = model.DefaultPreferences()
	}
	return &Store{
		backend: backend,
		state:   st,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Backend returns the persistence backend.
func (s *Store) Backend() Backend { return s.backend }

// newID must be called with mu held.
func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// commit must be called with mu held.
func (s *Store) commit(ctx context.Context, next State) error {
	if err := s.backend.Save(ctx, next); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	s.state = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.state.Reflections {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Create stores a new reflection at the front of the collection.
func (s *Store) Create(ctx context.Context, p NewReflection) (*model.Reflection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	id := s.newID(now)
	for s.indexOf(id) >= 0 {
		id = s.newID(now)
	}

	r := model.Reflection{
		ID:       id,
		Quote:    p.Quote.Clone(),
		UserNote: p.UserNote,
		Tags:     model.NormalizeTags(p.Tags),
		SavedAt:  now,
		Context:  p.Context,
	}

	next := s.state.clone()
	next.Reflections = append([]model.Reflection{r}, next.Reflections...)
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}

	out := r.Clone()
	return &out, nil
}

// ErrTagLimit is returned when adding a tag to a reflection that already
// has model.MaxTags.
var ErrTagLimit = fmt.Errorf("tag limit of %d reached", model.MaxTags)

// Update applies patch to the reflection with the given id. ok is false
// when the id is missing or the patch changes nothing; in both cases
// nothing is persisted and updatedAt stays as it was.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (ok bool, err error) {
	return s.mutate(ctx, id, func(r *model.Reflection) (bool, error) {
		changed := false
		if patch.UserNote != nil && r.UserNote != *patch.UserNote {
			r.UserNote = *patch.UserNote
			changed = true
		}
		if patch.Tags != nil {
			tags := model.NormalizeTags(*patch.Tags)
			if !equalTags(r.Tags, tags) {
				r.Tags = tags
				changed = true
			}
		}
		return changed, nil
	})
}

// AddTag adds tag to a reflection. A tag already present is a no-op; a
// reflection at model.MaxTags returns ErrTagLimit.
func (s *Store) AddTag(ctx context.Context, id, tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	return s.mutate(ctx, id, func(r *model.Reflection) (bool, error) {
		if tag == "" || containsTag(r.Tags, tag) {
			return false, nil
		}
		if len(r.Tags) >= model.MaxTags {
			return false, ErrTagLimit
		}
		r.Tags = append(r.Tags, tag)
		return true, nil
	})
}

// RemoveTag removes tag from a reflection. A missing tag is a no-op.
func (s *Store) RemoveTag(ctx context.Context, id, tag string) (bool, error) {
	return s.mutate(ctx, id, func(r *model.Reflection) (bool, error) {
		if !containsTag(r.Tags, tag) {
			return false, nil
		}
		var kept []string
		for _, t := range r.Tags {
			if t != tag {
				kept = append(kept, t)
			}
		}
		r.Tags = kept
		return true, nil
	})
}

// mutate applies fn to a copy of the record and commits only when fn
// reports a change.
func (s *Store) mutate(ctx context.Context, id string, fn func(r *model.Reflection) (bool, error)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := s.state.clone()
	r := &next.Reflections[i]
	changed, err := fn(r)
	if err != nil || !changed {
		return false, err
	}

	now := s.now().UTC()
	if now.Before(r.SavedAt) {
		now = r.SavedAt
	}
	r.UpdatedAt = &now

	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Delete removes the reflection with the given id. ok is false when it
// did not exist.
func (s *Store) Delete(ctx context.Context, id string) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := s.state.clone()
	next.Reflections = append(next.Reflections[:i], next.Reflections[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns a copy of the reflection with the given id.
func (s *Store) Get(id string) (model.Reflection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Reflection{}, false
	}
	return s.state.Reflections[i].Clone(), true
}

// List returns reflections newest first, optionally filtered.
func (s *Store) List(p ListParams) []model.Reflection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Reflection
	for _, r := range s.state.Reflections {
		if p.Category != "" && r.Quote.Category != p.Category {
			continue
		}
		if !hasAllTags(r.Tags, p.Tags) {
			continue
		}
		out = append(out, r.Clone())
		if p.Limit > 0 && len(out) == p.Limit {
			break
		}
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		if !containsTag(have, w) {
			return false
		}
	}
	return true
}

// All returns a copy of every reflection, newest first.
func (s *Store) All() []model.Reflection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneAll(s.state.Reflections)
}

// Reconcile replaces the collection with fn(current) and persists it.
// fn runs under the store lock against the latest local records, so
// mutations that landed while a caller was waiting on the network are
// included.
func (s *Store) Reconcile(ctx context.Context, fn func(local []model.Reflection) []model.Reflection) ([]model.Reflection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	next.Reflections = model.CloneAll(fn(model.CloneAll(s.state.Reflections)))
	if err := s.commit(ctx, next); err != nil {
		return nil, err
	}
	return model.CloneAll(next.Reflections), nil
}

// RecentQuoteIDs returns the recently served quote ids, most recent first.
func (s *Store) RecentQuoteIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.RecentQuoteIDs...)
}

// RecordServed pushes id onto the recent-selection window.
func (s *Store) RecordServed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	next.RecentQuoteIDs = selection.RecordServed(next.RecentQuoteIDs, id, selection.DefaultHistory)
	return s.commit(ctx, next)
}

// Preferences returns the stored preferences.
func (s *Store) Preferences() model.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone().Preferences
}

// SetPreferences replaces the stored preferences.
func (s *Store) SetPreferences(ctx context.Context, p model.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.clone()
	next.Preferences = p
	return s.commit(ctx, next)
}

// DeviceID returns this installation's pseudo-anonymous id, creating and
// persisting it on first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	s.mu.RLock()
	id := s.state.DeviceID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.DeviceID != "" {
		return s.state.DeviceID, nil
	}

	next := s.state.clone()
	next.DeviceID = "anon-" + s.newID(s.now())
	if err := s.commit(ctx, next); err != nil {
		return "", err
	}
	return next.DeviceID, nil
}
