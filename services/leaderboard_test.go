package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/bookclub/models"
)

func TestLeaderboardBounds(t *testing.T) {
	_, svc, _ := newTestServices(t)

	from, to, err := svc.Leaderboard.Bounds(PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), to)

	from, to, err = svc.Leaderboard.Bounds(PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), to)

	_, _, err = svc.Leaderboard.Bounds("yearly")
	assert.Error(t, err)
}

func TestWeekStartOnSunday(t *testing.T) {
	sunday := time.Date(2026, 10, 18, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), weekStart(sunday, time.UTC))
}

func TestLeaderboardRanking(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	a := seedUser(t, db, "anna", 0, nil)
	b := seedUser(t, db, "bart", 0, nil)
	c := seedUser(t, db, "cleo", 0, nil)
	d := seedUser(t, db, "dora", 0, nil)

	seedXP(t, db, a.ID, 4, testNow.Add(-time.Hour))
	seedXP(t, db, b.ID, 10, testNow.AddDate(0, 0, -1))
	seedXP(t, db, c.ID, 4, testNow)
	seedXP(t, db, d.ID, 2, testNow)
	seedXP(t, db, d.ID, -3, testNow)
	// last week, still this month
	seedXP(t, db, a.ID, 20, time.Date(2026, 10, 5, 12, 0, 0, 0, time.UTC))
	// last month
	seedXP(t, db, c.ID, 50, time.Date(2026, 9, 30, 12, 0, 0, 0, time.UTC))

	weekly, err := svc.Leaderboard.Current(ctx, PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, weekly.Entries, 3, "non-positive totals are left out")
	assert.Equal(t, b.ID, weekly.Entries[0].UserID)
	assert.Equal(t, 1, weekly.Entries[0].Rank)
	assert.Equal(t, a.ID, weekly.Entries[1].UserID, "ties go to the lower user id")
	assert.Equal(t, c.ID, weekly.Entries[2].UserID)
	assert.Equal(t, 3, weekly.Entries[2].Rank)
	assert.Equal(t, "bart", weekly.Entries[0].Username)

	monthly, err := svc.Leaderboard.Current(ctx, PeriodMonthly)
	require.NoError(t, err)
	require.Len(t, monthly.Entries, 3)
	assert.Equal(t, a.ID, monthly.Entries[0].UserID)
	assert.Equal(t, 24, monthly.Entries[0].TotalXP)
}

func TestLeaderboardIsCached(t *testing.T) {
	db := newTestDB(t)
	cache := newMemCache()
	svc := New(NewGormStore(db), cache, &testClock{now: testNow}, testOptions())
	ctx := context.Background()
	a := seedUser(t, db, "anna", 0, nil)
	seedXP(t, db, a.ID, 4, testNow)

	first, err := svc.Leaderboard.Current(ctx, PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	seedXP(t, db, a.ID, 4, testNow)
	cached, err := svc.Leaderboard.Current(ctx, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, 4, cached.Entries[0].TotalXP)

	require.NoError(t, svc.Ledger.Append(ctx, a.ID, 1, "fresh"))
	fresh, err := svc.Leaderboard.Current(ctx, PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, 9, fresh.Entries[0].TotalXP)
}

func TestPreviousMonthWinner(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()

	_, err := svc.Leaderboard.PreviousMonthWinner(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	a := seedUser(t, db, "anna", 0, nil)
	b := seedUser(t, db, "bart", 0, nil)
	seedXP(t, db, a.ID, 10, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC))
	seedXP(t, db, b.ID, 30, time.Date(2026, 9, 30, 23, 59, 0, 0, time.UTC))
	seedXP(t, db, a.ID, 99, testNow)

	w, err := svc.Leaderboard.PreviousMonthWinner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-09", w.Month)
	assert.Equal(t, b.ID, w.UserID)
	assert.Equal(t, 30, w.TotalXP)

	snap, err := svc.Leaderboard.SnapshotPreviousMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, snap.UserID)
	// idempotent
	_, err = svc.Leaderboard.SnapshotPreviousMonth(ctx)
	require.NoError(t, err)

	var count int64
	db.Model(&models.MonthlyWinner{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// the snapshot wins over the live ledger
	require.NoError(t, db.Model(&models.MonthlyWinner{}).Where("month = ?", "2026-09").Update("total_xp", 31).Error)
	w, err = svc.Leaderboard.PreviousMonthWinner(ctx)
	require.NoError(t, err)
	assert.Equal(t, 31, w.TotalXP)
}
