package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"roomledger/internal/domain/shared/errs"
)

type txKey struct{}

// dbtx is satisfied by both pgx.Tx and *pgxpool.Pool.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func contextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// conn prefers the transaction bound to ctx over fallback.
func conn(ctx context.Context, fallback dbtx) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

const (
	codeUniqueViolation      = "23505"
	codeInvalidText          = "22P02"
	codeCheckViolation       = "23514"
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

// mapError turns lock-wait and serialization failures into errs.ErrConcurrency
// and labels everything else with op.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return fmt.Errorf("%w: %s: %v", errs.ErrConcurrency, op, err)
	case codeInvalidText, codeCheckViolation:
		return fmt.Errorf("%w: %s: %v", errs.ErrValidation, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
