package definition

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/heartbeat/internal/monitor"
	"github.com/HerbHall/heartbeat/internal/store"
	"go.uber.org/zap"
)

// Compile-time interface guard.
var _ Source = (*Store)(nil)

// Store persists definitions registered through the API so they survive a
// restart. Rows are keyed by definition name.
type Store struct {
	db     *sql.DB
	clock  monitor.Clock
	logger *zap.Logger
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create monitor definitions table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS monitor_definitions (
					name       TEXT    PRIMARY KEY,
					document   TEXT    NOT NULL,
					updated_at INTEGER NOT NULL
				)`)
				return err
			},
		},
	}
}

// NewStore migrates db and returns a Store over it.
func NewStore(ctx context.Context, db *store.SQLiteStore, logger *zap.Logger) (*Store, error) {
	if err := db.Migrate(ctx, "definitions", migrations()); err != nil {
		return nil, fmt.Errorf("migrate definitions: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db.DB(), clock: time.Now, logger: logger}, nil
}

// Save inserts or replaces def. A zero UpdatedAt is set to the current time.
func (s *Store) Save(ctx context.Context, def monitor.Definition) error {
	doc, err := json.Marshal(Encode(def))
	if err != nil {
		return fmt.Errorf("encode definition %q: %w", def.Name, err)
	}
	updated := def.UpdatedAt
	if updated.IsZero() {
		updated = s.clock()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO monitor_definitions (name, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		def.Name, string(doc), updated.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save definition %q: %w", def.Name, err)
	}
	return nil
}

// Delete removes the definition called name and reports whether it existed.
func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM monitor_definitions WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("delete definition %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete definition %q: %w", name, err)
	}
	return n > 0, nil
}

// Get returns the definition called name.
func (s *Store) Get(ctx context.Context, name string) (monitor.Definition, bool, error) {
	var doc string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT document, updated_at FROM monitor_definitions WHERE name = ?", name,
	).Scan(&doc, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return monitor.Definition{}, false, nil
	}
	if err != nil {
		return monitor.Definition{}, false, fmt.Errorf("get definition %q: %w", name, err)
	}
	def, err := decodeRow(doc, updated)
	if err != nil {
		return monitor.Definition{}, false, fmt.Errorf("get definition %q: %w", name, err)
	}
	return def, true, nil
}

// List returns all stored definitions ordered by name. Rows that no longer
// decode are logged and left out.
func (s *Store) List(ctx context.Context) ([]monitor.Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, document, updated_at FROM monitor_definitions ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []monitor.Definition
	for rows.Next() {
		var name, doc string
		var updated int64
		if err := rows.Scan(&name, &doc, &updated); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		def, err := decodeRow(doc, updated)
		if err != nil {
			s.logger.Warn("skipping stored definition", zap.String("name", name), zap.Error(err))
			continue
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Load implements Source.
func (s *Store) Load(ctx context.Context) ([]monitor.Definition, error) {
	return s.List(ctx)
}

func decodeRow(doc string, updated int64) (monitor.Definition, error) {
	def, err := Decode([]byte(doc), FormatJSON)
	if err != nil {
		return monitor.Definition{}, err
	}
	def.UpdatedAt = time.Unix(0, updated)
	return def, nil
}
