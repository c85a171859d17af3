package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txKey carries the open transaction so exec and queryRow join it.
type txKey struct{}

// inTx runs fn in one read-committed transaction. Row locks taken by
// SELECT ... FOR UPDATE are held until fn returns.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if currentTx(ctx) != nil {
		return fn(ctx)
	}
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func currentTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}
