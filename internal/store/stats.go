package store

import (
	"os"
	"sort"
)

// Stats holds store statistics.
type Stats struct {
	DBPath           string          `json:"db_path,omitempty"`
	DBSizeBytes      int64           `json:"db_size_bytes,omitempty"`
	TotalReflections int             `json:"total_reflections"`
	Annotated        int             `json:"annotated"`
	Edited           int             `json:"edited"`
	RecentQuoteIDs   int             `json:"recent_quote_ids"`
	Categories       []CategoryStats `json:"categories"`
	DeviceIDAssigned bool            `json:"device_id_assigned"`
}

// CategoryStats holds per-category counts.
type CategoryStats struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats returns store statistics.
func (s *Store) Stats() *Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{
		TotalReflections: len(s.state.Reflections),
		RecentQuoteIDs:   len(s.state.RecentQuoteIDs),
		DeviceIDAssigned: s.state.DeviceID != "",
		Categories:       []CategoryStats{},
	}

	if p, ok := s.backend.(interface{ Path() string }); ok {
		st.DBPath = p.Path()
		if info, err := os.Stat(st.DBPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}

	counts := map[string]int{}
	for _, r := range s.state.Reflections {
		counts[r.Quote.Category]++
		if r.UserNote != "" || len(r.Tags) > 0 {
			st.Annotated++
		}
		if r.UpdatedAt != nil {
			st.Edited++
		}
	}
	for c, n := range counts {
		st.Categories = append(st.Categories, CategoryStats{Category: c, Count: n})
	}
	sort.Slice(st.Categories, func(i, j int) bool {
		if st.Categories[i].Count != st.Categories[j].Count {
			return st.Categories[i].Count > st.Categories[j].Count
		}
		return st.Categories[i].Category < st.Categories[j].Category
	})

	return st
}
