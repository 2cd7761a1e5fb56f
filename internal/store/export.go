package store

import (
	"time"

	"github.com/rcliao/wisdom/internal/model"
)

// ExportVersion is the format version written by Export.
const ExportVersion = 1

// Export is a portable snapshot of a device's reflections.
type Export struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exportedAt"`
	DeviceID    string             `json:"deviceId,omitempty"`
	Reflections []model.Reflection `json:"reflections"`
}

// ExportAll returns every reflection, optionally filtered by category.
func (s *Store) ExportAll(category string) *Export {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Export{
		Version:     ExportVersion,
		ExportedAt:  s.now().UTC(),
		DeviceID:    s.state.DeviceID,
		Reflections: []model.Reflection{},
	}
	for _, r := range s.state.Reflections {
		if category != "" && r.Quote.Category != category {
			continue
		}
		out.Reflections = append(out.Reflections, r.Clone())
	}
	return out
}
