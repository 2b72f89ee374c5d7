// Package storage implements the authoritative punishment store, a sqlite
// table owned by the proxy and keyed by punishment id.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Record is a persisted punishment row. Expiration is a unix millisecond
// timestamp; the permanent sentinel is stored as duration.MaxMillis so that
// ordering by expiration keeps permanent punishments last.
type Record struct {
	PunishmentID uuid.UUID
	PlayerID     uuid.UUID
	PlayerName   string
	Type         string
	Expiration   int64
	Reason       string
}

// Store wraps the sqlite database holding punishment records.
type Store struct {
	log *slog.Logger
	db  *sql.DB
}

// NewStore opens (and if needed creates) the punishment database at the given
// path.
func NewStore(log *slog.Logger, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS punishments (
			punishment_id TEXT PRIMARY KEY,
			uuid TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			expiration INTEGER NOT NULL,
			reason TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create punishments table: %w", err)
	}
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_punishments_player_type ON punishments(uuid, type)`)

	return &Store{log: log, db: db}, nil
}

// Insert persists a new punishment row.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO punishments (punishment_id, uuid, name, type, expiration, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.PunishmentID.String(), rec.PlayerID.String(), rec.PlayerName, rec.Type, rec.Expiration, rec.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert punishment: %w", err)
	}
	return nil
}

// Delete removes the row with the given punishment id. Deleting an absent id
// is not an error.
func (s *Store) Delete(ctx context.Context, punishmentID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM punishments WHERE punishment_id = ?`, punishmentID.String())
	if err != nil {
		return fmt.Errorf("failed to delete punishment: %w", err)
	}
	return nil
}

// Update replaces the reason and expiration of an existing row.
func (s *Store) Update(ctx context.Context, punishmentID uuid.UUID, reason string, expiration int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE punishments SET reason = ?, expiration = ? WHERE punishment_id = ?
	`, reason, expiration, punishmentID.String())
	if err != nil {
		return fmt.Errorf("failed to update punishment: %w", err)
	}
	return nil
}

// ByPlayerAndTypes returns all rows of the given types for a player, ordered
// by expiration so that selection among them is stable.
func (s *Store) ByPlayerAndTypes(ctx context.Context, playerID uuid.UUID, types ...string) ([]Record, error) {
	var records []Record
	for _, typ := range types {
		rows, err := s.db.QueryContext(ctx, `
			SELECT punishment_id, uuid, name, type, expiration, reason
			FROM punishments WHERE uuid = ? AND type = ? ORDER BY expiration
		`, playerID.String(), typ)
		if err != nil {
			return nil, fmt.Errorf("failed to query punishments: %w", err)
		}
		records, err = appendRecords(records, rows)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// ByID returns the row with the given punishment id, reporting whether it
// exists.
func (s *Store) ByID(ctx context.Context, punishmentID uuid.UUID) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT punishment_id, uuid, name, type, expiration, reason
		FROM punishments WHERE punishment_id = ?
	`, punishmentID.String())

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to query punishment: %w", err)
	}
	return rec, true, nil
}

// Close ...
func (s *Store) Close() error {
	return s.db.Close()
}

// appendRecords ...
func appendRecords(records []Record, rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan punishment: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read punishments: %w", err)
	}
	return records, nil
}

// scanRecord ...
func scanRecord(scan func(...any) error) (Record, error) {
	var (
		rec                  Record
		punishmentID, player string
	)
	if err := scan(&punishmentID, &player, &rec.PlayerName, &rec.Type, &rec.Expiration, &rec.Reason); err != nil {
		return Record{}, err
	}
	var err error
	if rec.PunishmentID, err = uuid.Parse(punishmentID); err != nil {
		return Record{}, fmt.Errorf("malformed punishment id %q: %w", punishmentID, err)
	}
	if rec.PlayerID, err = uuid.Parse(player); err != nil {
		return Record{}, fmt.Errorf("malformed player id %q: %w", player, err)
	}
	return rec, nil
}
