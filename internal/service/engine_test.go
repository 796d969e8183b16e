package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/rankcast/internal/db"
	"github.com/alexanderramin/rankcast/internal/domain"
	"github.com/alexanderramin/rankcast/internal/notify"
	"github.com/alexanderramin/rankcast/internal/projection"
	"github.com/alexanderramin/rankcast/internal/repository"
	"github.com/alexanderramin/rankcast/internal/service"
	"github.com/alexanderramin/rankcast/internal/testutil"
)

var (
	now        = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	errBoom    = errors.New("boom")
)

type fakeUpstream struct {
	mu         sync.Mutex
	events     []domain.Event
	items      map[int64]*domain.Item
	promotions []*domain.Item
	qualified  []*domain.Item
	flagged    map[int64]bool
	fetchErr   error
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{items: map[int64]*domain.Item{}, flagged: map[int64]bool{}}
}

func (f *fakeUpstream) push(id int64, typ domain.EventType, item int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, domain.Event{ID: id, ItemID: item, Type: typ, Timestamp: now})
}

func (f *fakeUpstream) FetchSince(_ context.Context, cursor int64) ([]domain.Event, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, cursor, f.fetchErr
	}
	var out []domain.Event
	latest := cursor
	for _, e := range f.events {
		if e.ID > cursor {
			out = append(out, e)
			latest = max(latest, e.ID)
		}
	}
	return out, latest, nil
}

func (f *fakeUpstream) LatestEventID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest int64
	for _, e := range f.events {
		latest = max(latest, e.ID)
	}
	return latest, nil
}

func (f *fakeUpstream) Item(_ context.Context, id int64) (*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, domain.ErrUnknownItem
	}
	return it.Clone(), nil
}

func (f *fakeUpstream) RecentPromotions(_ context.Context, since time.Time) ([]*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Item
	for _, it := range f.promotions {
		if !it.PromoteTime.Before(since) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (f *fakeUpstream) QualifiedItems(context.Context) ([]*domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Item, len(f.qualified))
	for i, it := range f.qualified {
		out[i] = it.Clone()
	}
	return out, nil
}

func (f *fakeUpstream) OpenIssues(context.Context) (map[int64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]bool, len(f.flagged))
	for id, v := range f.flagged {
		out[id] = v
	}
	return out, nil
}

// toggleUoW fails every transaction while fail is set.
type toggleUoW struct {
	inner db.UnitOfWork
	fail  atomic.Bool
}

func (u *toggleUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	if u.fail.Load() {
		return errBoom
	}
	return u.inner.WithinTx(ctx, fn)
}

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingSink) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingSink) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		return notify.Notification{}
	}
	return r.got[len(r.got)-1]
}

type recordingObserver struct {
	mu     sync.Mutex
	events []service.UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, e service.UseCaseEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

type harness struct {
	up       *fakeUpstream
	store    *repository.Store
	uow      *toggleUoW
	sink     *recordingSink
	observer *recordingObserver
	engine   *service.Engine
}

func newHarness(t *testing.T, mode service.Mode) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	uow := &toggleUoW{inner: testutil.NewTestUoW(database)}
	h := &harness{
		up:       newFakeUpstream(),
		store:    repository.NewStoreWithUoW(database.DB, database.Dialect, uow),
		uow:      uow,
		sink:     &recordingSink{},
		observer: &recordingObserver{},
	}
	h.engine = service.New(h.up, h.store, h.sink, service.Options{
		Mode:      mode,
		Rules:     projection.DefaultRules(),
		Retention: 7 * projection.Day,
		Logger:    testLogger,
		Observer:  h.observer,
		Now:       func() time.Time { return now },
	})
	return h
}

// seed registers two queued items, one recent promotion and one feed event.
func (h *harness) seed() {
	a := testutil.NewPendingItem(1, domain.LaneStandard, now.Add(-2*time.Hour))
	b := testutil.NewPendingItem(2, domain.LaneStandard, now.Add(time.Hour))
	h.up.qualified = []*domain.Item{a, b}
	h.up.items[1], h.up.items[2] = a, b
	h.up.promotions = []*domain.Item{testutil.NewPromotedItem(90, domain.LaneStandard, now.Add(-3*time.Hour))}
	h.up.push(100, domain.EventEnterQueue, 2)
}

func storedPending(t *testing.T, s *repository.Store) []int64 {
	t.Helper()
	items, err := s.Items.ListPending(context.Background())
	require.NoError(t, err)
	var ids []int64
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestSetup_SeedsStoreAndCursor(t *testing.T) {
	for _, mode := range []service.Mode{service.ModeMemory, service.ModeStateless} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, mode)
			h.seed()
			ctx := context.Background()

			n, err := h.engine.Setup(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			assert.Equal(t, []int64{1, 2}, storedPending(t, h.store))
			one, err := h.store.Items.Get(ctx, 1)
			require.NoError(t, err)
			assert.NotNil(t, one.PromoteTime)
			assert.NotNil(t, one.EarlyTime)

			promoted, err := h.store.Items.Get(ctx, 90)
			require.NoError(t, err)
			assert.Equal(t, domain.ItemPromoted, promoted.State)

			c, err := h.store.Cursor.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(100), c.LastEventID)

			assert.ElementsMatch(t, []int64{1, 2}, h.sink.last().UpdatedIDs())
		})
	}
}

func TestRunPass_EnterPersistsAndNotifies(t *testing.T) {
	for _, mode := range []service.Mode{service.ModeMemory, service.ModeStateless} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, mode)
			h.seed()
			ctx := context.Background()
			_, err := h.engine.Setup(ctx)
			require.NoError(t, err)

			h.up.items[3] = testutil.NewPendingItem(3, domain.LaneMania, now)
			h.up.push(101, domain.EventEnterQueue, 3)

			res, err := h.engine.RunPass(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Events)
			assert.Equal(t, int64(101), res.Cursor)
			require.NoError(t, res.WriteErr)

			got, err := h.store.Items.Get(ctx, 3)
			require.NoError(t, err)
			assert.NotNil(t, got.PromoteTime)
			assert.Contains(t, h.sink.last().UpdatedIDs(), int64(3))

			c, err := h.store.Cursor.Get(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(101), c.LastEventID)
		})
	}
}

func TestRunPass_WithdrawDeletesAndPromoteKeepsRow(t *testing.T) {
	h := newHarness(t, service.ModeStateless)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)

	h.up.push(101, domain.EventWithdraw, 2)
	h.up.push(102, domain.EventPromote, 1)

	res, err := h.engine.RunPass(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, res.Removed)
	assert.Empty(t, storedPending(t, h.store))

	_, err = h.store.Items.Get(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	one, err := h.store.Items.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPromoted, one.State)
	assert.ElementsMatch(t, []int64{1, 2}, h.sink.last().Removed)
}

func TestRunPass_NoEventsWritesNothing(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)
	sent := len(h.sink.got)

	res, err := h.engine.RunPass(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Events)
	assert.Empty(t, res.Updated)
	assert.Len(t, h.sink.got, sent, "empty notifications are not sent")
}

func TestRunPass_FetchErrorKeepsCursor(t *testing.T) {
	h := newHarness(t, service.ModeStateless)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)

	h.up.push(101, domain.EventWithdraw, 2)
	h.up.fetchErr = errBoom
	_, err = h.engine.RunPass(ctx)
	require.ErrorIs(t, err, errBoom)

	c, err := h.store.Cursor.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), c.LastEventID)
	assert.Equal(t, []int64{1, 2}, storedPending(t, h.store))
}

func TestRunPass_MemoryModeRetriesFailedWrites(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)

	h.up.items[3] = testutil.NewPendingItem(3, domain.LaneTaiko, now)
	h.up.push(101, domain.EventEnterQueue, 3)
	h.up.push(102, domain.EventWithdraw, 2)

	h.uow.fail.Store(true)
	res, err := h.engine.RunPass(ctx)
	require.NoError(t, err, "write failures do not fail the pass")
	require.ErrorIs(t, res.WriteErr, errBoom)

	b, err := h.engine.Board(ctx)
	require.NoError(t, err)
	_, ok := b.Get(3)
	assert.True(t, ok, "in-memory board keeps the change")
	assert.Equal(t, []int64{1, 2}, storedPending(t, h.store))

	h.uow.fail.Store(false)
	res, err = h.engine.RunPass(ctx)
	require.NoError(t, err)
	require.NoError(t, res.WriteErr)
	assert.Zero(t, res.Events)

	assert.Equal(t, []int64{1, 3}, storedPending(t, h.store))
	c, err := h.store.Cursor.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(102), c.LastEventID)
}

func TestRecalculate_DryRunLeavesStore(t *testing.T) {
	h := newHarness(t, service.ModeStateless)
	ctx := context.Background()
	stale := testutil.NewPendingItem(5, domain.LaneCatch, now,
		testutil.WithProjection(now.Add(-time.Hour), now.Add(-time.Hour), testutil.Float(0.1)))
	require.NoError(t, h.store.Items.Upsert(ctx, stale))

	changed, err := h.engine.Recalculate(ctx, true)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, int64(5), changed[0].ID)

	got, err := h.store.Items.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), *got.PromoteTime)

	changed, err = h.engine.Recalculate(ctx, false)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	got, err = h.store.Items.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, got.PromoteTime.Before(now), "reprojected at or after readiness")

	changed, err = h.engine.Recalculate(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, changed, "second recalculation is a no-op")
}

func TestInsert_PendingAndPromoted(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)

	h.up.items[7] = testutil.NewPendingItem(7, domain.LaneStandard, now.Add(-time.Hour))
	it, err := h.engine.Insert(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.NotNil(t, it.PromoteTime)
	assert.Equal(t, []int64{1, 7, 2}, storedPending(t, h.store))

	h.up.items[1] = testutil.NewPromotedItem(1, domain.LaneStandard, now.Add(-time.Minute))
	it, err = h.engine.Insert(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPromoted, it.State)
	assert.Equal(t, []int64{7, 2}, storedPending(t, h.store))
	assert.Equal(t, []int64{1}, h.sink.last().Removed)

	_, err = h.engine.Insert(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrUnknownItem)
}

func TestRefreshOpenIssues_FlagsAndUnflags(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)

	h.up.flagged[1] = true
	flipped, err := h.engine.RefreshOpenIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)

	got, err := h.store.Items.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.HasOpenIssue)

	flipped, err = h.engine.RefreshOpenIssues(ctx)
	require.NoError(t, err)
	assert.Zero(t, flipped)

	delete(h.up.flagged, 1)
	flipped, err = h.engine.RefreshOpenIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, flipped)
	got, err = h.store.Items.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, got.HasOpenIssue)
}

func TestPrune_DeletesPastRetention(t *testing.T) {
	h := newHarness(t, service.ModeStateless)
	ctx := context.Background()
	old := testutil.NewPromotedItem(11, domain.LaneStandard, now.Add(-8*projection.Day))
	recent := testutil.NewPromotedItem(12, domain.LaneStandard, now.Add(-time.Hour))
	require.NoError(t, h.store.Items.Upsert(ctx, old, recent))

	n, err := h.engine.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = h.store.Items.Get(ctx, 11)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = h.store.Items.Get(ctx, 12)
	assert.NoError(t, err)
}

func TestReset_ReseedsFromUpstream(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	stray := testutil.NewPendingItem(55, domain.LaneMania, now)
	require.NoError(t, h.store.Items.Upsert(ctx, stray))

	_, err := h.engine.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, storedPending(t, h.store))
}

func TestCheckpoint_WritesWholeBoard(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)
	require.NoError(t, h.store.Items.DeleteAll(ctx))

	require.NoError(t, h.engine.Checkpoint(ctx))
	assert.Equal(t, []int64{1, 2}, storedPending(t, h.store))
}

func TestUseCasesReportToObserver(t *testing.T) {
	h := newHarness(t, service.ModeMemory)
	h.seed()
	ctx := context.Background()
	_, err := h.engine.Setup(ctx)
	require.NoError(t, err)
	h.up.fetchErr = errBoom
	_, err = h.engine.RunPass(ctx)
	require.Error(t, err)

	require.Len(t, h.observer.events, 2)
	assert.Equal(t, "setup", h.observer.events[0].Name)
	assert.True(t, h.observer.events[0].Success)
	assert.Equal(t, "pass", h.observer.events[1].Name)
	assert.False(t, h.observer.events[1].Success)
	assert.NotEqual(t, h.observer.events[0].PassID, h.observer.events[1].PassID)
	assert.NotEmpty(t, h.observer.events[1].PassID)
}

func TestParseMode(t *testing.T) {
	m, err := service.ParseMode("stateless")
	require.NoError(t, err)
	assert.Equal(t, service.ModeStateless, m)
	_, err = service.ParseMode("disk")
	assert.Error(t, err)
}

func TestInitialized(t *testing.T) {
	h := newHarness(t, service.ModeStateless)
	h.seed()
	ctx := context.Background()

	ok, err := h.engine.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.engine.Setup(ctx)
	require.NoError(t, err)
	ok, err = h.engine.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
