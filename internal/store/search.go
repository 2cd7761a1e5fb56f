package store

import (
	"strings"

	"github.com/rcliao/wisdom/internal/model"
)

// SearchParams holds parameters for searching reflections.
type SearchParams struct {
	Query    string
	Category string
	Limit    int
}

// SearchResult wraps a reflection with the field that matched.
type SearchResult struct {
	model.Reflection
	MatchedIn string `json:"matched_in"`
}

// Search finds reflections whose quote text, author, note or tags contain
// the query, case-insensitively. Results keep the store's newest-first order.
func (s *Store) Search(p SearchParams) []SearchResult {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(strings.TrimSpace(p.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, r := range s.state.Reflections {
		if p.Category != "" && r.Quote.Category != p.Category {
			continue
		}
		field := matchField(r, q)
		if field == "" {
			continue
		}
		results = append(results, SearchResult{Reflection: r.Clone(), MatchedIn: field})
		if len(results) == limit {
			break
		}
	}
	return results
}

func matchField(r model.Reflection, q string) string {
	if q == "" {
		return "all"
	}
	if strings.Contains(strings.ToLower(r.Quote.Text), q) {
		return "quote"
	}
	for _, t := range r.Quote.Translations {
		if strings.Contains(strings.ToLower(t), q) {
			return "quote"
		}
	}
	if strings.Contains(strings.ToLower(r.Quote.Author), q) {
		return "author"
	}
	if strings.Contains(strings.ToLower(r.UserNote), q) {
		return "note"
	}
	for _, t := range r.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return "tags"
		}
	}
	return ""
}
