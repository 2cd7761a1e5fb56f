// Package selection picks weighted quotes while steering away from recent repeats.
package selection

import (
	"math/rand"

	"github.com/rcliao/wisdom/internal/model"
)

// DefaultHistory is how many served ids RecordServed keeps.
const DefaultHistory = 20

// Select returns one quote from catalog, weighted by Quote.Weight.
//
// Ids in exclude are avoided unless that would leave nothing to pick from.
// The category filter is advisory in the same way. ok is false only when
// the catalog is empty.
func Select(rng *rand.Rand, catalog []model.Quote, exclude []string, categories []string) (q model.Quote, ok bool) {
	if len(catalog) == 0 {
		return model.Quote{}, false
	}

	available := catalog
	if len(exclude) > 0 {
		skip := toSet(exclude)
		var kept []model.Quote
		for _, c := range catalog {
			if !skip[c.ID] {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			available = kept
		}
	}

	if len(categories) > 0 {
		allowed := toSet(categories)
		var filtered []model.Quote
		for _, c := range available {
			if allowed[c.Category] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			available = filtered
		}
	}

	return draw(rng, available), true
}

// draw does the weighted pick over a non-empty working set.
func draw(rng *rand.Rand, items []model.Quote) model.Quote {
	total := 0.0
	for _, it := range items {
		total += weightOf(it)
	}
	if total <= 0 {
		return items[rng.Intn(len(items))]
	}

	r := rng.Float64() * total
	for _, it := range items {
		w := weightOf(it)
		if w == 0 {
			continue
		}
		r -= w
		if r <= 0 {
			return it
		}
	}
	// Float rounding can leave r a hair above zero; the last weighted item wins.
	for i := len(items) - 1; i >= 0; i-- {
		if weightOf(items[i]) > 0 {
			return items[i]
		}
	}
	return items[len(items)-1]
}

func weightOf(q model.Quote) float64 {
	if q.Weight > 0 {
		return q.Weight
	}
	return 0
}

// RecordServed returns history with id moved to the front, capped at max.
// The input slice is not modified.
func RecordServed(history []string, id string, max int) []string {
	if max <= 0 {
		max = DefaultHistory
	}
	out := make([]string, 0, max)
	out = append(out, id)
	for _, h := range history {
		if len(out) == max {
			break
		}
		if h != id {
			out = append(out, h)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
