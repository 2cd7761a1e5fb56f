// Package syncer reconciles the local reflection store with the remote service.
package syncer

import (
	"sort"

	"github.com/rcliao/wisdom/internal/model"
)

// Merge combines local and remote reflections, last write wins by id.
//
// A remote record replaces the local one only when its effective time
// (updatedAt, else savedAt) is strictly later; ties keep local. Records
// present on one side only are kept. The result is ordered by savedAt,
// newest first, with id as the tiebreak so repeated merges are identical.
//
// Deletions are not reconciled: a record deleted locally but still present
// remotely comes back.
func Merge(local, remote []model.Reflection) []model.Reflection {
	byID := make(map[string]model.Reflection, len(local)+len(remote))
	for _, r := range local {
		byID[r.ID] = r.Clone()
	}
	for _, r := range remote {
		cur, ok := byID[r.ID]
		if !ok || r.EffectiveTime().After(cur.EffectiveTime()) {
			byID[r.ID] = r.Clone()
		}
	}

	out := make([]model.Reflection, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
