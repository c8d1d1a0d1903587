package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/attribly/convrelay/internal/clock"
	eventdomain "github.com/attribly/convrelay/internal/event/domain"
	ledgerdomain "github.com/attribly/convrelay/internal/ledger/domain"
	ledgerrepo "github.com/attribly/convrelay/internal/ledger/repository"
	"github.com/attribly/convrelay/internal/notifier"
	"github.com/attribly/convrelay/internal/reconciler"
	"github.com/attribly/convrelay/internal/warehouse"
	"github.com/attribly/convrelay/internal/watermark"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeWarehouse struct {
	total int64
	rows  []eventdomain.Event
	err   error
}

func (f *fakeWarehouse) CountEvents(ctx context.Context) (int64, error) {
	_ = ctx
	return f.total, f.err
}

func (f *fakeWarehouse) FetchNewest(ctx context.Context, limit int64) ([]eventdomain.Event, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	if limit > int64(len(f.rows)) {
		limit = int64(len(f.rows))
	}
	return f.rows[:limit], nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, subscriberID string, status notifier.Status) error {
	args := m.Called(ctx, subscriberID, status)
	return args.Error(0)
}

type fixture struct {
	sched  *Scheduler
	wh     *fakeWarehouse
	store  *watermark.Store
	db     *gorm.DB
	sender *mockSender
	clk    *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerdomain.PendingTrial{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	wh := &fakeWarehouse{}
	store := watermark.NewStore(filepath.Join(t.TempDir(), "var_storage.json"), zap.NewNop())
	sender := &mockSender{}
	clk := clock.NewFakeClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))

	rec, err := reconciler.New(reconciler.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Repo:     ledgerrepo.Provide(),
		Notifier: sender,
		GenID:    node,
		Clock:    clk,
		Config:   reconciler.Config{GracePeriod: time.Hour},
	})
	require.NoError(t, err)

	sched, err := New(Params{
		Log:        zap.NewNop(),
		Fetcher:    warehouse.NewFetcher(wh, store, zap.NewNop(), nil),
		Reconciler: rec,
		Clock:      clk,
		Config:     Config{CycleTimeout: time.Minute},
	})
	require.NoError(t, err)

	return &fixture{sched: sched, wh: wh, store: store, db: conn, sender: sender, clk: clk}
}

func (f *fixture) watermark(t *testing.T) int64 {
	t.Helper()
	count, err := f.store.Load()
	require.NoError(t, err)
	return count
}

func (f *fixture) pendingCount(t *testing.T, subscriberID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&ledgerdomain.PendingTrial{}).Where("af_sub1 = ?", subscriberID).Count(&count).Error)
	return count
}

func TestRunOnceFullCycle(t *testing.T) {
	// watermark = 100, current_total = 103, three new rows.
	f := newFixture(t)
	require.NoError(t, f.store.Save(100))

	now := f.clk.Now()
	f.wh.total = 103
	f.wh.rows = []eventdomain.Event{
		{EventTime: now, EventName: eventdomain.EventInstall, SubscriberID: "A"},
		{EventTime: now, EventName: eventdomain.EventTrialStarted, SubscriberID: "B"},
		{EventTime: now, EventName: eventdomain.EventTrialCancelled, SubscriberID: "C"},
	}
	f.sender.On("Send", mock.Anything, "A", notifier.StatusInstall).Return(nil).Once()

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.sender.AssertExpectations(t)
	assert.Equal(t, int64(103), f.watermark(t))
	assert.Equal(t, int64(1), f.pendingCount(t, "B"))
	assert.Equal(t, int64(0), f.pendingCount(t, "C"))
}

func TestRunOnceNoNewEvents(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(100))
	f.wh.total = 100

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(100), f.watermark(t))
}

func TestRunOnceTruncatedWarehouseResetsWatermark(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(80))
	f.wh.total = 50

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, int64(50), f.watermark(t))
}

func TestRunOnceWarehouseFailureAborts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(100))
	f.wh.err = errors.New("warehouse unreachable")
	f.wh.total = 120

	err := f.sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(100), f.watermark(t), "watermark untouched on aborted cycle")
}

func TestWatermarkNonDecreasingAcrossCycles(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	totals := []int64{2, 2, 5, 5, 9}
	prev := int64(0)
	for _, total := range totals {
		f.wh.total = total
		f.wh.rows = []eventdomain.Event{
			{EventTime: now, EventName: eventdomain.EventTrialCancelled, SubscriberID: "none"},
		}
		require.NoError(t, f.sched.RunOnce(context.Background()))

		got := f.watermark(t)
		assert.GreaterOrEqual(t, got, prev)
		assert.Equal(t, total, got)
		prev = got
	}
}

func TestConfirmationSpansCycles(t *testing.T) {
	f := newFixture(t)
	now := f.clk.Now()

	f.wh.total = 1
	f.wh.rows = []eventdomain.Event{
		{EventTime: now, EventName: eventdomain.EventTrialStarted, SubscriberID: "B"},
	}
	require.NoError(t, f.sched.RunOnce(context.Background()))
	require.Equal(t, int64(1), f.pendingCount(t, "B"))

	// Next cycle, past the grace period, with one more unrelated row.
	f.clk.Advance(61 * time.Minute)
	f.wh.total = 2
	f.wh.rows = []eventdomain.Event{
		{EventTime: f.clk.Now(), EventName: eventdomain.EventInstall, SubscriberID: "Z"},
	}
	f.sender.On("Send", mock.Anything, "Z", notifier.StatusInstall).Return(nil).Once()
	f.sender.On("Send", mock.Anything, "B", notifier.StatusTrialStarted).Return(nil).Once()

	require.NoError(t, f.sched.RunOnce(context.Background()))

	f.sender.AssertExpectations(t)
	assert.Equal(t, int64(0), f.pendingCount(t, "B"))
	assert.Equal(t, int64(2), f.watermark(t))
}
