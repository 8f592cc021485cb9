package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// JournalEntry is one resolved prediction.
type JournalEntry struct {
	ID              string // ULID
	Entity          uint64
	PredictionID    uint32
	AbilityID       string
	Status          string
	ErrCode         string
	ClientTimestamp int64
	ReceivedAt      time.Duration // server clock
	ResolvedAt      time.Duration
}

// beginner is the part of pgxpool.Pool the repo needs.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type JournalRepo struct {
	db beginner
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db.Pool}
}

// WriteBatch atomically writes a batch of journal entries in a single
// transaction. Entries already written (same id) are skipped.
func (r *JournalRepo) WriteBatch(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO prediction_journal
			   (id, entity, prediction_id, ability_id, status, err_code, client_ts, received_at_ms, resolved_at_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, int64(e.Entity), int64(e.PredictionID), e.AbilityID, e.Status, e.ErrCode,
			e.ClientTimestamp, e.ReceivedAt.Milliseconds(), e.ResolvedAt.Milliseconds(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}

	return tx.Commit(ctx)
}

// CountByStatus returns how many journal rows carry each status.
func (r *JournalRepo) CountByStatus(ctx context.Context) (map[string]int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT status, count(*) FROM prediction_journal GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal count: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}
