package remote

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/wisdom/internal/model"
)

// row is one record of the remote table.
type row struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	QuoteID   string      `json:"quote_id"`
	QuoteData model.Quote `json:"quote_data"`
	UserNote  *string     `json:"user_note"`
	Tags      []string    `json:"tags"`
	SavedAt   pgTime      `json:"saved_at"`
	UpdatedAt pgTime      `json:"updated_at"`
}

// newRow maps a reflection onto the table. updated_at is never null
// remotely, so an unedited record carries its saved time there.
func newRow(userID string, r model.Reflection) row {
	out := row{
		ID:        r.ID,
		UserID:    userID,
		QuoteID:   r.Quote.ID,
		QuoteData: r.Quote,
		Tags:      r.Tags,
		SavedAt:   pgTime(r.SavedAt.UTC()),
		UpdatedAt: pgTime(r.EffectiveTime().UTC()),
	}
	if r.UserNote != "" {
		note := r.UserNote
		out.UserNote = &note
	}
	return out
}

func (r row) reflection() model.Reflection {
	out := model.Reflection{
		ID:      r.ID,
		Quote:   r.QuoteData,
		Tags:    r.Tags,
		SavedAt: time.Time(r.SavedAt),
	}
	if out.Quote.ID == "" {
		out.Quote.ID = r.QuoteID
	}
	if r.UserNote != nil {
		out.UserNote = *r.UserNote
	}
	if u := time.Time(r.UpdatedAt); !u.IsZero() && !u.Equal(out.SavedAt) {
		out.UpdatedAt = &u
	}
	return out
}

// pgTime accepts the timestamp shapes PostgREST returns for both
// timestamptz and timestamp columns.
type pgTime time.Time

var pgLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t pgTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *pgTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = pgTime{}
		return nil
	}
	for _, layout := range pgLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = pgTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
