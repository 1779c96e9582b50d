package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/store"
	"beer-scanner-backend/internal/store/storetest"
)

func createBar(t *testing.T, gdb *gorm.DB, bar model.Bar) model.Bar {
	t.Helper()
	require.NoError(t, gdb.Create(&bar).Error)
	return bar
}

func TestListBarsDue(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)

	now := time.Now().UTC()
	recent := now.Add(-5 * time.Minute)
	old := now.Add(-2 * time.Hour)

	fresh := createBar(t, gdb, model.Bar{Name: "Fresh", MenuURL: "http://fresh", IsApproved: true, LastCheckedAt: &recent})
	stale := createBar(t, gdb, model.Bar{Name: "Stale", MenuURL: "http://stale", IsApproved: true, LastCheckedAt: &old})
	never := createBar(t, gdb, model.Bar{Name: "Never", MenuURL: "http://never", IsApproved: true})
	createBar(t, gdb, model.Bar{Name: "Pending approval", MenuURL: "http://x", IsApproved: false})
	createBar(t, gdb, model.Bar{Name: "No menu", IsApproved: true})

	ids := func(bars []model.Bar) []int64 {
		out := make([]int64, 0, len(bars))
		for _, b := range bars {
			out = append(out, b.ID)
		}
		return out
	}

	all, err := st.ListBarsDue(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{fresh.ID, stale.ID, never.ID}, ids(all))

	cutoff := now.Add(-time.Hour)
	due, err := st.ListBarsDue(ctx, &cutoff)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale.ID, never.ID}, ids(due))

	listed, err := st.ListBars(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 4)
	assert.Equal(t, "Fresh", listed[0].Name)
}

func TestRecordFingerprint(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.RecordFingerprint(ctx, bar.ID, "abc123", at))

	got, err := st.GetBar(ctx, bar.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.LastMenuHash)
	require.NotNil(t, got.LastCheckedAt)
	assert.True(t, got.LastCheckedAt.Equal(at))

	err = st.RecordFingerprint(ctx, bar.ID+100, "abc123", at)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetBar(ctx, bar.ID+100)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAvailabilityWindow(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})
	beer := model.Beer{Name: "IPA One", Brewery: "Acme"}
	require.NoError(t, st.CreateBeer(ctx, &beer))

	added := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, st.OpenCurrent(ctx, bar.ID, beer.ID, added))

	verified := added.Add(30 * time.Minute)
	require.NoError(t, st.VerifyCurrent(ctx, bar.ID, []int64{beer.ID}, verified))

	current, err := st.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "IPA One", current[0].Beer.Name)
	assert.True(t, current[0].LastVerifiedAt.Equal(verified))

	removed := added.Add(time.Hour)
	require.NoError(t, st.CloseCurrent(ctx, current[0], removed))
	// Closing twice does not archive a second window.
	require.NoError(t, st.CloseCurrent(ctx, current[0], removed))

	current, err = st.ListCurrent(ctx, bar.ID)
	require.NoError(t, err)
	assert.Empty(t, current)

	history, err := st.ListHistory(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].AddedAt.Equal(added))
	require.NotNil(t, history[0].RemovedAt)
	assert.True(t, history[0].RemovedAt.Equal(removed))

	// A window left open is closed by CloseOpenHistory.
	require.NoError(t, gdb.Create(&model.HistoricalAvailability{BarID: bar.ID, BeerID: beer.ID, AddedAt: added}).Error)
	n, err := st.CloseOpenHistory(ctx, bar.ID, beer.ID, removed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = st.CloseOpenHistory(ctx, bar.ID, beer.ID, removed)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListChecksToResume(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})

	mk := func(status model.CheckStatus) *model.Check {
		c := &model.Check{BarID: bar.ID, ProcessingStatus: status}
		require.NoError(t, st.CreateCheck(ctx, c))
		return c
	}
	pending := mk(model.CheckPending)
	stuck := mk(model.CheckProcessing)
	busy := mk(model.CheckProcessing)
	mk(model.CheckCompleted)
	mk(model.CheckFailed)

	runStart := time.Now().UTC()
	require.NoError(t, gdb.Model(&model.Check{}).Where("id = ?", stuck.ID).
		UpdateColumn("updated_at", runStart.Add(-time.Hour)).Error)
	require.NoError(t, gdb.Model(&model.Check{}).Where("id = ?", busy.ID).
		UpdateColumn("updated_at", runStart.Add(time.Minute)).Error)

	checks, err := st.ListChecksToResume(ctx, runStart)
	require.NoError(t, err)
	ids := []int64{}
	for _, c := range checks {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []int64{pending.ID, stuck.ID}, ids)
}

func TestNewerChangedCheck(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})
	other := createBar(t, gdb, model.Bar{Name: "Elsewhere", MenuURL: "http://elsewhere", IsApproved: true})

	mk := func(barID int64, changed bool, status model.CheckStatus) *model.Check {
		c := &model.Check{BarID: barID, HasChanges: changed, ProcessingStatus: status}
		require.NoError(t, st.CreateCheck(ctx, c))
		return c
	}
	old := mk(bar.ID, true, model.CheckPending)
	mk(bar.ID, false, model.CheckCompleted)
	mk(bar.ID, true, model.CheckFailed)
	mk(other.ID, true, model.CheckCompleted)

	_, err := st.NewerChangedCheck(ctx, bar.ID, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	newer := mk(bar.ID, true, model.CheckCompleted)
	got, err := st.NewerChangedCheck(ctx, bar.ID, old.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = st.NewerChangedCheck(ctx, bar.ID, newer.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCheckBeersAndResult(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})
	ipa := model.Beer{Name: "IPA One", Brewery: "Acme"}
	stout := model.Beer{Name: "Old Stout", Brewery: "Acme"}
	require.NoError(t, st.CreateBeer(ctx, &ipa))
	require.NoError(t, st.CreateBeer(ctx, &stout))

	check := &model.Check{BarID: bar.ID, HasChanges: true, ProcessingStatus: model.CheckPending}
	require.NoError(t, st.CreateCheck(ctx, check))

	err := st.Transaction(ctx, func(tx store.Store) error {
		if err := tx.SetCheckBeers(ctx, check.ID, []model.Beer{ipa}, []model.Beer{stout}); err != nil {
			return err
		}
		check.ProcessingStatus = model.CheckCompleted
		check.ProcessDuration = 1250
		return tx.SaveCheckResult(ctx, check)
	})
	require.NoError(t, err)

	got, err := st.GetCheck(ctx, check.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CheckCompleted, got.ProcessingStatus)
	assert.EqualValues(t, 1250, got.ProcessDuration)
	assert.Equal(t, "Taproom", got.Bar.Name)
	require.Len(t, got.BeersAdded, 1)
	assert.Equal(t, ipa.ID, got.BeersAdded[0].ID)
	require.Len(t, got.BeersRemoved, 1)
	assert.Equal(t, stout.ID, got.BeersRemoved[0].ID)

	_, err = st.GetCheck(ctx, check.ID+1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})

	err := st.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateCheck(ctx, &model.Check{BarID: bar.ID, ProcessingStatus: model.CheckPending}); err != nil {
			return err
		}
		return tx.RecordFingerprint(ctx, bar.ID+1, "abc", time.Now())
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	checks, err := st.ListChecksForBar(ctx, bar.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, checks)
}

func TestUsersTrackingBeer(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	bar := createBar(t, gdb, model.Bar{Name: "Taproom", MenuURL: "http://taproom", IsApproved: true})
	other := createBar(t, gdb, model.Bar{Name: "Elsewhere", MenuURL: "http://elsewhere", IsApproved: true})
	beer := model.Beer{Name: "IPA One", Brewery: "Acme"}
	require.NoError(t, st.CreateBeer(ctx, &beer))

	both := model.User{Email: "both@example.test"}
	here := model.User{Email: "here@example.test"}
	there := model.User{Email: "there@example.test"}
	for _, u := range []*model.User{&both, &here, &there} {
		require.NoError(t, gdb.Create(u).Error)
	}
	trackings := []model.BeerTracking{
		{UserID: both.ID, BeerID: beer.ID},
		{UserID: both.ID, BeerID: beer.ID, BarID: &bar.ID},
		{UserID: here.ID, BeerID: beer.ID, BarID: &bar.ID},
		{UserID: there.ID, BeerID: beer.ID, BarID: &other.ID},
	}
	require.NoError(t, gdb.Create(&trackings).Error)

	users, err := st.UsersTrackingBeer(ctx, beer.ID, bar.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, both.ID, users[0].ID)
	assert.Equal(t, here.ID, users[1].ID)

	require.NoError(t, gdb.Model(&here).Association("TrackedBars").Append(&bar))
	barUsers, err := st.UsersTrackingBar(ctx, bar.ID)
	require.NoError(t, err)
	require.Len(t, barUsers, 1)
	assert.Equal(t, here.ID, barUsers[0].ID)
}

func TestStatsUpsertAndAggregate(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	a := createBar(t, gdb, model.Bar{Name: "A", IsApproved: true})
	b := createBar(t, gdb, model.Bar{Name: "B", IsApproved: true})

	_, err := st.GetStats(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.SaveStats(ctx, &model.ScraperStats{BarID: a.ID, TotalChecks: 1, SuccessfulChecks: 1, LastCheckDurationMs: 100}))
	require.NoError(t, st.SaveStats(ctx, &model.ScraperStats{BarID: a.ID, TotalChecks: 2, SuccessfulChecks: 1, FailedChecks: 1, TotalChangesDetected: 3, LastCheckDurationMs: 300}))
	require.NoError(t, st.SaveStats(ctx, &model.ScraperStats{BarID: b.ID, TotalChecks: 1, FailedChecks: 1, LastCheckDurationMs: 100}))

	got, err := st.GetStats(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.TotalChecks)
	assert.EqualValues(t, 3, got.TotalChangesDetected)

	agg, err := st.AggregateStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, agg.Bars)
	assert.EqualValues(t, 3, agg.TotalChecks)
	assert.EqualValues(t, 1, agg.SuccessfulChecks)
	assert.EqualValues(t, 2, agg.FailedChecks)
	assert.EqualValues(t, 3, agg.TotalChangesDetected)
	assert.InDelta(t, 200, agg.AvgCheckDurationMs, 0.001)
}

func TestPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	u := model.User{Email: "fan@example.test"}
	require.NoError(t, gdb.Create(&u).Error)

	sub := &model.PushSubscription{Endpoint: "https://push.example/1", UserID: u.ID, P256DH: "k1", Auth: "a1"}
	require.NoError(t, st.UpsertPushSubscription(ctx, sub))
	require.NoError(t, st.UpsertPushSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/1", UserID: u.ID, P256DH: "k2", Auth: "a2",
	}))

	got, err := st.GetPushSubscription(ctx, "https://push.example/1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)

	subs, err := st.ListPushSubscriptions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, st.DeletePushSubscription(ctx, "https://push.example/1"))
	_, err = st.GetPushSubscription(ctx, "https://push.example/1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNotificationLifecycle(t *testing.T) {
	ctx := context.Background()
	st, gdb := storetest.Open(t)
	u := model.User{Email: "fan@example.test"}
	require.NoError(t, gdb.Create(&u).Error)

	require.NoError(t, st.CreateNotifications(ctx, []model.Notification{
		{UserID: u.ID, Title: "one", Message: "m", Type: model.NotificationSystem},
		{UserID: u.ID, Title: "two", Message: "m", Type: model.NotificationSystem},
	}))

	ids, err := st.ListUnsentNotificationIDs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	won, err := st.ClaimNotification(ctx, ids[0], time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	won, err = st.ClaimNotification(ctx, ids[0], time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, st.ReleaseNotification(ctx, ids[0]))
	ids, err = st.ListUnsentNotificationIDs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, st.MarkNotificationRead(ctx, ids[1]))
	assert.ErrorIs(t, st.MarkNotificationRead(ctx, ids[1]+100), store.ErrNotFound)

	unread, err := st.ListNotificationsForUser(ctx, u.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, ids[0], unread[0].ID)
}
