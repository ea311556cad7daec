package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/whodunit/internal/errors"
	"github.com/myrjola/whodunit/internal/models"
	"github.com/myrjola/whodunit/internal/sqlite"
)

type TurnRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewTurnRepository(dbs *sqlite.Database, logger *slog.Logger) *TurnRepository {
	return &TurnRepository{
		dbs:    dbs,
		logger: logger.With(slog.String("source", "TurnRepository")),
	}
}

// RecordTurn appends turn to the audit log. ID is assigned by the database.
func (r *TurnRepository) RecordTurn(ctx context.Context, turn models.TurnRecord) error {
	stmt := `INSERT INTO turns (session_hash, conversation, player, model, created_at)
VALUES (:session_hash, :conversation, :player, :model, :created_at)`
	if _, err := r.dbs.ReadWrite.NamedExecContext(ctx, stmt, turn); err != nil {
		return errors.Wrap(err, "insert turn",
			slog.String("conversation", turn.Conversation))
	}
	return nil
}

// ListTurns returns the recorded turns of a session hash in the order they were recorded.
func (r *TurnRepository) ListTurns(ctx context.Context, sessionHash string) ([]models.TurnRecord, error) {
	turns := []models.TurnRecord{}
	stmt := `SELECT id, session_hash, conversation, player, model, created_at
FROM turns
WHERE session_hash = ?
ORDER BY id`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &turns, stmt, sessionHash); err != nil {
		return nil, errors.Wrap(err, "select turns")
	}
	return turns, nil
}

// CountTurns returns the number of recorded turns across all sessions.
func (r *TurnRepository) CountTurns(ctx context.Context) (int, error) {
	var count int
	if err := r.dbs.ReadOnly.GetContext(ctx, &count, `SELECT COUNT(*) FROM turns`); err != nil {
		return 0, errors.Wrap(err, "count turns")
	}
	return count, nil
}

// PruneTurns deletes the turns recorded before cutoff and returns how many were deleted.
func (r *TurnRepository) PruneTurns(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.dbs.ReadWrite.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "delete turns", slog.Time("cutoff", cutoff))
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return deleted, nil
}

// RunRetention prunes turns older than retention every interval until ctx is done.
func (r *TurnRepository) RunRetention(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			deleted, err := r.PruneTurns(ctx, now.Add(-retention))
			if err != nil {
				r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to prune turns", errors.SlogError(err))
				continue
			}
			if deleted > 0 {
				r.logger.LogAttrs(ctx, slog.LevelDebug, "pruned turns", slog.Int64("deleted", deleted))
			}
		}
	}
}
