package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/testutil"
)

var repoNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newItemRepo(t *testing.T) *SQLItemRepo {
	t.Helper()
	d := testutil.NewTestDB(t)
	return NewSQLItemRepo(d.DB, d.Dialect)
}

func TestItemRepo_UpsertAndGet_RoundTrip(t *testing.T) {
	repo := newItemRepo(t)
	ctx := context.Background()

	it := testutil.NewPendingItem(7, domain.LaneCatch, repoNow,
		testutil.WithTitle("Blue Zenith"),
		testutil.WithCreator("Asphyxia", 42),
		testutil.WithOpenIssue(),
		testutil.WithProjection(repoNow, repoNow.Add(20*time.Minute), testutil.Float(0.42)),
	)
	require.NoError(t, repo.Upsert(ctx, it))

	got, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, it, got)
}

func TestItemRepo_Upsert_NullsRoundTrip(t *testing.T) {
	repo := newItemRepo(t)
	ctx := context.Background()

	it := testutil.NewPromotedItem(8, domain.LaneMania, repoNow)
	require.NoError(t, repo.Upsert(ctx, it))

	got, err := repo.Get(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, got.EarlyTime)
	assert.Nil(t, got.Probability)
	assert.Equal(t, domain.ItemPromoted, got.State)
	assert.Equal(t, repoNow, *got.PromoteTime)
}

func TestItemRepo_Upsert_Overwrites(t *testing.T) {
	repo := newItemRepo(t)
	ctx := context.Background()

	it := testutil.NewPendingItem(1, domain.LaneStandard, repoNow)
	require.NoError(t, repo.Upsert(ctx, it))
	it.HasOpenIssue = true
	it.MarkPromoted(repoNow.Add(time.Hour))
	require.NoError(t, repo.Upsert(ctx, it))

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPromoted, got.State)
	assert.False(t, got.HasOpenIssue)
}

func TestItemRepo_Get_NotFound(t *testing.T) {
	repo := newItemRepo(t)
	_, err := repo.Get(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestItemRepo_ListAndPrune(t *testing.T) {
	repo := newItemRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		testutil.NewPendingItem(1, domain.LaneTaiko, repoNow.Add(2*time.Hour)),
		testutil.NewPendingItem(2, domain.LaneStandard, repoNow.Add(time.Hour)),
		testutil.NewPendingItem(3, domain.LaneStandard, repoNow),
		testutil.NewPromotedItem(10, domain.LaneStandard, repoNow.Add(-8*24*time.Hour)),
		testutil.NewPromotedItem(11, domain.LaneStandard, repoNow.Add(-3*time.Hour)),
		testutil.NewPromotedItem(12, domain.LaneTaiko, repoNow.Add(-time.Hour)),
	))

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, idsOf(pending))

	recent, err := repo.ListPromotedSince(ctx, repoNow.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, idsOf(recent))

	n, err := repo.DeletePromotedBefore(ctx, repoNow.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.Delete(ctx, 1, 2))
	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, idsOf(pending))

	require.NoError(t, repo.Delete(ctx))
	require.NoError(t, repo.DeleteAll(ctx))
	recent, err = repo.ListPromotedSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func idsOf(items []*domain.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
