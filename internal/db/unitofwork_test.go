package db_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/repository"
	"github.com/alexanderramin/rankcast/internal/testutil"
)

var uowNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

// failOnTable rejects writes to one table so a later statement of the
// transaction fails after earlier ones succeeded.
type failOnTable struct {
	db.DBTX
	table string
}

func (f failOnTable) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if strings.Contains(query, f.table) {
		return nil, errors.New("write to " + f.table + " rejected")
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

// writePass mirrors a pass write: item upsert first, then the cursor.
func writePass(ctx context.Context, tx db.DBTX, dialect db.Dialect, item *domain.Item, eventID int64) error {
	if err := repository.NewSQLItemRepo(tx, dialect).Upsert(ctx, item); err != nil {
		return err
	}
	return repository.NewSQLCursorRepo(tx, dialect).Save(ctx, domain.Cursor{LastEventID: eventID, UpdatedAt: uowNow})
}

func TestWithinTx_CommitsItemAndCursor(t *testing.T) {
	d := testutil.NewTestDB(t)
	uow := db.NewUnitOfWork(d)
	ctx := context.Background()

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return writePass(ctx, tx, d.Dialect, testutil.NewPendingItem(1, domain.LaneStandard, uowNow), 40)
	})
	require.NoError(t, err)

	got, err := repository.NewSQLItemRepo(d.DB, d.Dialect).Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPending, got.State)
	cursor, err := repository.NewSQLCursorRepo(d.DB, d.Dialect).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), cursor.LastEventID)
}

func TestWithinTx_FailedCursorSaveRollsBackItem(t *testing.T) {
	d := testutil.NewTestDB(t)
	uow := db.NewUnitOfWork(d)
	ctx := context.Background()

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return writePass(ctx, failOnTable{DBTX: tx, table: "app_state"}, d.Dialect,
			testutil.NewPendingItem(2, domain.LaneTaiko, uowNow), 41)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app_state rejected")

	_, err = repository.NewSQLItemRepo(d.DB, d.Dialect).Get(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrNotFound, "item upsert must roll back with the cursor")
	_, err = repository.NewSQLCursorRepo(d.DB, d.Dialect).Get(ctx)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	d := testutil.NewTestDB(t)
	uow := db.NewUnitOfWork(d)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
			_ = repository.NewSQLItemRepo(tx, d.Dialect).Upsert(ctx, testutil.NewPendingItem(3, domain.LaneMania, uowNow))
			panic("boom")
		})
	})

	pending, err := repository.NewSQLItemRepo(d.DB, d.Dialect).ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWithinTx_KeepsExistingRowsOnFailure(t *testing.T) {
	d := testutil.NewTestDB(t)
	uow := db.NewUnitOfWork(d)
	ctx := context.Background()

	require.NoError(t, uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return writePass(ctx, tx, d.Dialect, testutil.NewPendingItem(4, domain.LaneCatch, uowNow), 50)
	}))

	moved := testutil.NewPendingItem(4, domain.LaneCatch, uowNow.Add(time.Hour))
	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return writePass(ctx, failOnTable{DBTX: tx, table: "app_state"}, d.Dialect, moved, 51)
	})
	require.Error(t, err)

	got, err := repository.NewSQLItemRepo(d.DB, d.Dialect).Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, uowNow, got.ReadyTime)
	cursor, err := repository.NewSQLCursorRepo(d.DB, d.Dialect).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), cursor.LastEventID)
}
