package history

import (
	"context"
	"database/sql"
	"github.com/stripesight/stripesight/internal/db"
	"github.com/stripesight/stripesight/internal/errors"
	"log/slog"
	"time"
)

var ErrNotFound = errors.NewSentinel("investigation not recorded")

// Investigation is one locally recorded investigation launch.
type Investigation struct {
	ID           string     `db:"id"`
	Location     string     `db:"location"`
	Notes        string     `db:"notes"`
	Status       string     `db:"status"`
	MatchesFound int        `db:"matches_found"`
	LaunchedAt   time.Time  `db:"launched_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}

// Store keeps a local record of launched investigations so past runs can be
// listed and revisited after the process exits. The reconciled live state is
// never persisted here; it is rebuilt from poll and push traffic on demand.
type Store struct {
	database *db.Database
	logger   *slog.Logger
}

func NewStore(database *db.Database, logger *slog.Logger) *Store {
	return &Store{
		database: database,
		logger:   logger.With("source", "HistoryStore"),
	}
}

// Record stores a freshly launched investigation.
func (s *Store) Record(ctx context.Context, inv Investigation) error {
	if inv.LaunchedAt.IsZero() {
		inv.LaunchedAt = time.Now()
	}
	if inv.Status == "" {
		inv.Status = "running"
	}
	stmt := `INSERT INTO investigations (id, location, notes, status, launched_at)
VALUES (@id, @location, @notes, @status, @launched_at)`
	params := []any{
		sql.Named("id", inv.ID),
		sql.Named("location", inv.Location),
		sql.Named("notes", inv.Notes),
		sql.Named("status", inv.Status),
		sql.Named("launched_at", inv.LaunchedAt),
	}
	if _, err := s.database.ReadWrite.ExecContext(ctx, stmt, params...); err != nil {
		return errors.Wrap(err, "insert investigation", slog.String("id", inv.ID))
	}
	return nil
}

// Finish records the final outcome of an investigation.
func (s *Store) Finish(ctx context.Context, id, status string, matchesFound int) error {
	stmt := `UPDATE investigations
SET status = @status, matches_found = @matches_found, completed_at = @completed_at
WHERE id = @id`
	params := []any{
		sql.Named("status", status),
		sql.Named("matches_found", matchesFound),
		sql.Named("completed_at", time.Now()),
		sql.Named("id", id),
	}
	result, err := s.database.ReadWrite.ExecContext(ctx, stmt, params...)
	if err != nil {
		return errors.Wrap(err, "update investigation", slog.String("id", id))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return errors.Wrap(ErrNotFound, "finish investigation", slog.String("id", id))
	}
	return nil
}

// Get returns one recorded investigation by ID.
func (s *Store) Get(ctx context.Context, id string) (Investigation, error) {
	var inv Investigation
	stmt := `SELECT id, location, notes, status, matches_found, launched_at, completed_at
FROM investigations WHERE id = ?`
	if err := s.database.ReadOnly.GetContext(ctx, &inv, stmt, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inv, errors.Wrap(ErrNotFound, "get investigation", slog.String("id", id))
		}
		return inv, errors.Wrap(err, "get investigation", slog.String("id", id))
	}
	return inv, nil
}

// List returns all recorded investigations, newest first.
func (s *Store) List(ctx context.Context) ([]Investigation, error) {
	var investigations []Investigation
	stmt := `SELECT id, location, notes, status, matches_found, launched_at, completed_at
FROM investigations ORDER BY launched_at DESC`
	if err := s.database.ReadOnly.SelectContext(ctx, &investigations, stmt); err != nil {
		return nil, errors.Wrap(err, "list investigations")
	}
	return investigations, nil
}
