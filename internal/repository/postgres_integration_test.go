package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/testutil"
)

func postgresIntegrationDB(t *testing.T) *db.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("RANKCAST_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set RANKCAST_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	d, err := db.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	store := NewStore(d)
	require.NoError(t, store.Reset(context.Background()))
	return d
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	d := postgresIntegrationDB(t)
	require.Equal(t, db.DialectPostgres, d.Dialect)
	store := NewStore(d)
	ctx := context.Background()

	it := testutil.NewPendingItem(1, domain.LaneTaiko, repoNow,
		testutil.WithProjection(repoNow, repoNow.Add(20*time.Minute), testutil.Float(0.5)))
	cursor := domain.Cursor{LastEventID: 77, UpdatedAt: repoNow}
	require.NoError(t, store.SavePass(ctx, PassWrite{Upsert: []*domain.Item{it}, Cursor: &cursor}))
	require.NoError(t, store.Updates.Record(ctx, Update{Timestamp: repoNow, UpdatedIDs: []int64{1}}))

	got, err := store.Items.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, it, got)

	c, err := store.Cursor.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(77), c.LastEventID)

	u, err := store.Updates.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, u.UpdatedIDs)
}
