package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/bookclub/models"
)

func TestAdvancePageModeReachesEnd(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "ruth", 0, nil)
	plan := seedPagePlan(t, db, 100, 10)
	require.NoError(t, db.Create(&models.UserProgress{UserID: user.ID, PlanID: plan.ID, CurrentPage: 95, FurthestPage: 95}).Error)

	res, err := svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.True(t, res.Earned)
	assert.Equal(t, 2, res.XPAwarded)
	assert.Equal(t, 100, res.Progress.CurrentPage)
	assert.Equal(t, 100, res.Progress.FurthestPage)
	assert.True(t, res.Progress.IsCompleted)
	assert.Empty(t, res.Notices)

	entries := ledgerOf(t, db, user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Amount)
	assert.Equal(t, "Read page 100", entries[0].Description)

	// at the end: no new ground, no reward
	res, err = svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.False(t, res.Earned)
	assert.Zero(t, res.XPAwarded)
	assert.Equal(t, 100, res.Progress.CurrentPage)
	assert.Len(t, ledgerOf(t, db, user.ID), 1)
}

func TestAdvanceChapterMode(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "boaz", 0, nil)
	plan := seedChapterPlan(t, db, 21)
	require.NoError(t, db.Create(&models.UserProgress{UserID: user.ID, PlanID: plan.ID, CurrentChapter: 20, FurthestChapter: 20}).Error)

	res, err := svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.True(t, res.Earned)
	assert.Equal(t, 21, res.Progress.CurrentChapter)
	assert.Equal(t, 21, res.Progress.FurthestChapter)

	entries := ledgerOf(t, db, user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Amount)
	assert.Equal(t, "Read chapter", entries[0].Description)

	_, err = svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Len(t, ledgerOf(t, db, user.ID), 1)

	stored, err := svc.Store.GetProgress(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, stored.CurrentChapter)
	assert.True(t, stored.IsCompleted)
}

func TestAdvanceCreatesRecordAndUsesDefaultGoal(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "naomi", 0, nil)
	plan := seedPagePlan(t, db, 300, 0)

	res, err := svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Progress.CurrentPage)
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.Streak)

	stored, err := svc.Store.GetProgress(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.CurrentPage)
	assert.Equal(t, 10, stored.FurthestPage)
	assert.False(t, stored.IsCompleted)
	assert.True(t, testNow.Equal(stored.LastReadAt))

	entries := ledgerOf(t, db, user.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Read page 10", entries[0].Description)
}

func TestHighWaterMarkIsMonotonic(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "eli", 0, nil)
	plan := seedPagePlan(t, db, 200, 10)

	res, err := svc.Progress.SavePosition(ctx, user.ID, plan.ID, 80)
	require.NoError(t, err)
	assert.True(t, res.Earned)
	assert.Zero(t, res.XPAwarded)

	res, err = svc.Progress.SavePosition(ctx, user.ID, plan.ID, 30)
	require.NoError(t, err)
	assert.False(t, res.Earned)
	assert.Equal(t, 30, res.Progress.CurrentPage)
	assert.Equal(t, 80, res.Progress.FurthestPage)

	// re-reading covered ground earns nothing
	res, err = svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.False(t, res.Earned)
	assert.Equal(t, 40, res.Progress.CurrentPage)

	stored, err := svc.Store.GetProgress(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.CurrentPage)
	assert.Equal(t, 80, stored.FurthestPage)
	assert.Empty(t, ledgerOf(t, db, user.ID))
}

func TestSavePositionNeverTouchesStreakOrXP(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "hannah", 4, day(-1))
	plan := seedChapterPlan(t, db, 10)

	res, err := svc.Progress.SavePosition(ctx, user.ID, plan.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Progress.CurrentChapter, "clamped to total")
	assert.Nil(t, res.Streak)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 4, reloaded.Streak)
	assert.Empty(t, ledgerOf(t, db, user.ID))
}

func TestProgressRejectsBadInput(t *testing.T) {
	db, svc, _ := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "saul", 0, nil)
	plan := seedPagePlan(t, db, 100, 10)

	_, err := svc.Progress.Advance(ctx, 0, plan.ID)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Progress.Advance(ctx, user.ID, 9999)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = svc.Progress.SavePosition(ctx, user.ID, plan.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	var n int64
	db.Model(&models.UserProgress{}).Count(&n)
	assert.Zero(t, n)
	assert.Empty(t, ledgerOf(t, db, user.ID))
}

func TestAdvanceKeepsGoingWhenPositionWriteFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "jonah", 0, nil)
	plan := seedPagePlan(t, db, 100, 10)
	require.NoError(t, db.Create(&models.UserProgress{UserID: user.ID, PlanID: plan.ID, CurrentPage: 20, FurthestPage: 20}).Error)

	store := &failingStore{Store: NewGormStore(db), failUpsert: true}
	svc := New(store, nil, &testClock{now: testNow}, testOptions())

	res, err := svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Progress.CurrentPage, "optimistic state is returned")
	assert.Contains(t, res.Notices, "progress could not be saved")
	require.NotNil(t, res.Reconciled)
	assert.Equal(t, 20, res.Reconciled.CurrentPage)

	// streak and XP still follow
	require.NotNil(t, res.Streak)
	assert.Equal(t, 1, res.Streak.Streak)
	assert.Equal(t, 2, res.XPAwarded)
}

func TestAdvanceReportsFailedXPAsNotice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := seedUser(t, db, "amos", 0, nil)
	plan := seedChapterPlan(t, db, 5)

	store := &failingStore{Store: NewGormStore(db), failXP: true}
	svc := New(store, nil, &testClock{now: testNow}, testOptions())

	res, err := svc.Progress.Advance(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.True(t, res.Earned)
	assert.Zero(t, res.XPAwarded)
	assert.Contains(t, res.Notices, "xp could not be recorded")

	stored, err := svc.Store.GetProgress(ctx, user.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FurthestChapter)
}

func TestListProgress(t *testing.T) {
	db, svc, clock := newTestServices(t)
	ctx := context.Background()
	user := seedUser(t, db, "lydia", 0, nil)
	a := seedPagePlan(t, db, 100, 10)
	b := seedChapterPlan(t, db, 3)

	_, err := svc.Progress.Advance(ctx, user.ID, a.ID)
	require.NoError(t, err)
	clock.now = clock.now.Add(time.Hour)
	_, err = svc.Progress.Advance(ctx, user.ID, b.ID)
	require.NoError(t, err)

	items, err := svc.Progress.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].PlanID)

	_, err = svc.Progress.List(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
