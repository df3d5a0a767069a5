package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type stubTx struct {
	pgx.Tx
}

func (stubTx) Commit(context.Context) error   { return nil }
func (stubTx) Rollback(context.Context) error { return nil }

type stubBeginner struct {
	begins int
}

func (b *stubBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	b.begins++
	return stubTx{}, nil
}

func serializationErr() error {
	return fmt.Errorf("update booking: %w", &pgconn.PgError{Code: "40001"})
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	b := &stubBeginner{}
	calls := 0
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return serializationErr()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, b.begins)
}

func TestWithTxGivesUpAfterMaxAttempts(t *testing.T) {
	b := &stubBeginner{}
	err := WithTx(context.Background(), b, func(pgx.Tx) error {
		return serializationErr()
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "40001", pgErr.Code)
	require.Equal(t, maxTxAttempts, b.begins)
}

func TestWithTxDoesNotRetryDomainErrors(t *testing.T) {
	b := &stubBeginner{}
	sentinel := errors.New("boom")
	err := WithTx(context.Background(), b, func(pgx.Tx) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, b.begins)
}

func TestWithTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &stubBeginner{}
	err := WithTx(ctx, b, func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, b.begins)
}

func TestSerializationFailure(t *testing.T) {
	require.True(t, SerializationFailure(&pgconn.PgError{Code: "40001"}))
	require.True(t, SerializationFailure(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, SerializationFailure(&pgconn.PgError{Code: "23505"}))
	require.False(t, SerializationFailure(errors.New("plain")))
	require.False(t, SerializationFailure(nil))
}
