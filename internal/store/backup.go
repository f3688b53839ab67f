package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosspost-dev/crosspost/internal/domain"
)

// BackupStore implements domain.BackupStore over the single-row
// delivery_backup table. Only the state machine writes it, and only while a
// session is Sending or being finalized.
type BackupStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Backups returns the store's BackupStore view.
func (s *Store) Backups(logger *slog.Logger) *BackupStore {
	return &BackupStore{db: s.db, logger: logger}
}

// Save writes the outcome set, replacing any previous record.
func (b *BackupStore) Save(ctx context.Context, outcomes []domain.Outcome) error {
	payload, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO delivery_backup (id, outcomes, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET outcomes = excluded.outcomes, updated_at = excluded.updated_at`,
		string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

// Restore returns the saved outcome set and clears it in the same
// transaction, so a stale record can never be replayed twice. A missing,
// empty, or malformed record yields (nil, nil).
func (b *BackupStore) Restore(ctx context.Context) ([]domain.Outcome, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx, `SELECT outcomes FROM delivery_backup WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM delivery_backup WHERE id = 1`); err != nil {
		return nil, fmt.Errorf("clear backup: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	var outcomes []domain.Outcome
	if err := json.Unmarshal([]byte(payload), &outcomes); err != nil {
		b.logger.Warn("discarding malformed delivery backup", "error", err)
		return nil, nil
	}
	return outcomes, nil
}

// Clear removes any saved record.
func (b *BackupStore) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM delivery_backup WHERE id = 1`); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	return nil
}
