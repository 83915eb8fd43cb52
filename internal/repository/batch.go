package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// sendBatch executes a queued batch and returns the number of affected rows.
// All statements share the caller's transaction.
func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) (int, error) {
	br := tx.SendBatch(ctx, b)
	total := 0
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, br.Close()
}
