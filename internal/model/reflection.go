// Package model defines the core quote and reflection data types.
package model

import (
	"strings"
	"time"
)

// MaxTags is the most tags a reflection may carry.
const MaxTags = 5

// Quote is a read-only catalog entry.
type Quote struct {
	ID           string            `json:"id" yaml:"id"`
	Text         string            `json:"text" yaml:"text"`
	Translations map[string]string `json:"translations,omitempty" yaml:"translations,omitempty"`
	Category     string            `json:"category" yaml:"category"`
	Subcategory  string            `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Weight       float64           `json:"weight" yaml:"weight"`
	Tags         []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Author       string            `json:"author,omitempty" yaml:"author,omitempty"`
}

// TextFor returns the text for lang, falling back to the default text.
func (q Quote) TextFor(lang string) string {
	if t, ok := q.Translations[lang]; ok && t != "" {
		return t
	}
	return q.Text
}

// Reflection is a user-saved snapshot of a quote plus personal annotation.
type Reflection struct {
	ID        string     `json:"id"`
	Quote     Quote      `json:"quote"`
	UserNote  string     `json:"userNote,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	SavedAt   time.Time  `json:"savedAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Context   string     `json:"context,omitempty"`
}

// EffectiveTime is the last-modified time used for conflict resolution.
func (r Reflection) EffectiveTime() time.Time {
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.SavedAt
}

// Clone returns a deep copy.
func (r Reflection) Clone() Reflection {
	c := r
	c.Quote = r.Quote.Clone()
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		c.UpdatedAt = &t
	}
	return c
}

// Clone returns a deep copy.
func (q Quote) Clone() Quote {
	c := q
	if q.Tags != nil {
		c.Tags = append([]string(nil), q.Tags...)
	}
	if q.Translations != nil {
		c.Translations = make(map[string]string, len(q.Translations))
		for k, v := range q.Translations {
			c.Translations[k] = v
		}
	}
	return c
}

// CloneAll deep-copies a slice of reflections.
func CloneAll(rs []Reflection) []Reflection {
	if rs == nil {
		return nil
	}
	out := make([]Reflection, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

// NormalizeTags trims, drops empties and duplicates, and caps at MaxTags.
func NormalizeTags(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// Preferences is an opaque settings object persisted alongside reflections.
type Preferences struct {
	RotationIntervalSeconds int             `json:"rotationIntervalSeconds"`
	Enabled                 map[string]bool `json:"enabled,omitempty"`
}

// DefaultPreferences returns the preferences used before the user sets any.
func DefaultPreferences() Preferences {
	return Preferences{
		RotationIntervalSeconds: 30,
		Enabled: map[string]bool{
			"autoRotate": true,
			"sync":       true,
		},
	}
}

// ValidCategories is the closed set of quote categories.
var ValidCategories = map[string]bool{
	"leadership": true,
	"strategy":   true,
	"resilience": true,
	"wisdom":     true,
	"innovation": true,
	"balance":    true,
}
