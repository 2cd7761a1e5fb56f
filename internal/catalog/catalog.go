// Package catalog loads the read-only quote dataset.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/wisdom/internal/model"
)

//go:embed quotes.yaml
var bundled []byte

// Catalog is an immutable, ordered set of quotes.
type Catalog struct {
	quotes []model.Quote
	byID   map[string]int
}

type document struct {
	Quotes []model.Quote `yaml:"quotes"`
}

// Load returns the bundled catalog, or the file at path when path is set.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(bundled)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Quotes) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	c := &Catalog{byID: make(map[string]int, len(doc.Quotes))}
	for i, q := range doc.Quotes {
		q.ID = strings.TrimSpace(q.ID)
		switch {
		case q.ID == "":
			return nil, fmt.Errorf("quote %d: missing id", i)
		case strings.TrimSpace(q.Text) == "":
			return nil, fmt.Errorf("quote %s: missing text", q.ID)
		case q.Weight < 0:
			return nil, fmt.Errorf("quote %s: negative weight %v", q.ID, q.Weight)
		case !model.ValidCategories[q.Category]:
			return nil, fmt.Errorf("quote %s: invalid category %q", q.ID, q.Category)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("quote %s: duplicate id", q.ID)
		}
		c.byID[q.ID] = len(c.quotes)
		c.quotes = append(c.quotes, q)
	}
	return c, nil
}

// All returns the quotes in catalog order. Callers must not modify the slice.
func (c *Catalog) All() []model.Quote {
	return c.quotes
}

// ByID looks up a quote.
func (c *Catalog) ByID(id string) (model.Quote, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Quote{}, false
	}
	return c.quotes[i], true
}

// Categories returns the distinct categories present, sorted.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range c.quotes {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of quotes.
func (c *Catalog) Len() int { return len(c.quotes) }
