package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/wisdom/internal/model"
)

// Settings keys. The device id lives under its own key, outside the
// wisdom namespace.
const (
	keyRecentQuoteIDs = "wisdom.recentQuoteIds"
	keyPreferences    = "wisdom.preferences"
	keyDeviceID       = "device.id"
)

// SQLiteBackend implements Backend using SQLite.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens or creates a SQLite database at the given path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(full)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	b := &SQLiteBackend{db: db, path: dbPath}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

// Path returns the database file path.
func (b *SQLiteBackend) Path() string { return b.path }

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reflections (
		id          TEXT PRIMARY KEY,
		position    INTEGER NOT NULL,
		quote_id    TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		quote_data  TEXT NOT NULL,
		user_note   TEXT,
		tags        TEXT,
		saved_at    TEXT NOT NULL,
		updated_at  TEXT,
		context     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_reflections_position ON reflections(position);
	CREATE INDEX IF NOT EXISTS idx_reflections_category ON reflections(category);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := b.db.Exec(schema)
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context) (State, error) {
	var st State

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, quote_data, user_note, tags, saved_at, updated_at, context
		 FROM reflections ORDER BY position`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReflection(rows)
		if err != nil {
			return st, err
		}
		st.Reflections = append(st.Reflections, r)
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	settings, err := b.loadSettings(ctx)
	if err != nil {
		return st, err
	}
	if v, ok := settings[keyRecentQuoteIDs]; ok {
		if err := json.Unmarshal([]byte(v), &st.RecentQuoteIDs); err != nil {
			return st, fmt.Errorf("decode %s: %w", keyRecentQuoteIDs, err)
		}
	}
	if v, ok := settings[keyPreferences]; ok {
		if err := json.Unmarshal([]byte(v), &st.Preferences); err != nil {
			return st, fmt.Errorf("decode %s: %w", keyPreferences, err)
		}
	}
	st.DeviceID = settings[keyDeviceID]

	return st, nil
}

func (b *SQLiteBackend) loadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Save(ctx context.Context, st State) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reflections`); err != nil {
		return fmt.Errorf("clear reflections: %w", err)
	}

	for i, r := range st.Reflections {
		quoteJSON, err := json.Marshal(r.Quote)
		if err != nil {
			return fmt.Errorf("encode quote: %w", err)
		}

		var tagsJSON, note, updatedAt, origin *string
		if len(r.Tags) > 0 {
			tb, _ := json.Marshal(r.Tags)
			s := string(tb)
			tagsJSON = &s
		}
		if r.UserNote != "" {
			note = &r.UserNote
		}
		if r.UpdatedAt != nil {
			s := r.UpdatedAt.UTC().Format(time.RFC3339Nano)
			updatedAt = &s
		}
		if r.Context != "" {
			origin = &r.Context
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reflections (id, position, quote_id, category, quote_data, user_note, tags, saved_at, updated_at, context)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, r.Quote.ID, r.Quote.Category, string(quoteJSON), note, tagsJSON,
			r.SavedAt.UTC().Format(time.RFC3339Nano), updatedAt, origin)
		if err != nil {
			return fmt.Errorf("insert reflection %s: %w", r.ID, err)
		}
	}

	recent, _ := json.Marshal(st.RecentQuoteIDs)
	prefs, _ := json.Marshal(st.Preferences)
	kv := [][2]string{
		{keyRecentQuoteIDs, string(recent)},
		{keyPreferences, string(prefs)},
	}
	if st.DeviceID != "" {
		kv = append(kv, [2]string{keyDeviceID, st.DeviceID})
	}
	for _, e := range kv {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, e[0], e[1])
		if err != nil {
			return fmt.Errorf("save %s: %w", e[0], err)
		}
	}

	return tx.Commit()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReflection(row scanner) (model.Reflection, error) {
	var r model.Reflection
	var quoteJSON, savedAt string
	var note, tagsJSON, updatedAt, origin sql.NullString

	if err := row.Scan(&r.ID, &quoteJSON, &note, &tagsJSON, &savedAt, &updatedAt, &origin); err != nil {
		return r, err
	}

	if err := json.Unmarshal([]byte(quoteJSON), &r.Quote); err != nil {
		return r, fmt.Errorf("decode quote for %s: %w", r.ID, err)
	}
	r.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)
	if note.Valid {
		r.UserNote = note.String
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &r.Tags)
	}
	if updatedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, updatedAt.String)
		r.UpdatedAt = &t
	}
	if origin.Valid {
		r.Context = origin.String
	}
	return r, nil
}
