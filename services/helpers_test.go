package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/bookclub/models"
)

// Wednesday.
var testNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func testOptions() Options {
	return Options{
		Location:       time.UTC,
		Rewards:        RewardRules{DefaultDailyPageGoal: 10, PageXP: 2, ChapterXP: 1},
		MissedPenalty:  1,
		LeaderboardTTL: time.Minute,
	}
}

func newTestServices(t *testing.T) (*gorm.DB, *Services, *testClock) {
	t.Helper()
	db := newTestDB(t)
	clock := &testClock{now: testNow}
	return db, NewFromDB(db, nil, clock, testOptions()), clock
}

func seedUser(t *testing.T, db *gorm.DB, name string, streak int, lastActive *time.Time) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@book.club", Streak: streak}
	if lastActive != nil {
		d := datatypes.Date(*lastActive)
		u.LastActiveDate = &d
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPagePlan(t *testing.T, db *gorm.DB, pages, goal int) *models.ReadingPlan {
	t.Helper()
	p := &models.ReadingPlan{Title: "Mere Christianity", Category: models.CategoryTheology, TotalPages: pages, DailyPageGoal: goal}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedChapterPlan(t *testing.T, db *gorm.DB, chapters int) *models.ReadingPlan {
	t.Helper()
	p := &models.ReadingPlan{Title: "John", Category: models.CategoryBible, TotalChapters: chapters, BibleBook: "John"}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedXP(t *testing.T, db *gorm.DB, userID uint, amount int, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.XPEntry{UserID: userID, Amount: amount, Description: "seed", CreatedAt: at}).Error)
}

func ledgerOf(t *testing.T, db *gorm.DB, userID uint) []models.XPEntry {
	t.Helper()
	var entries []models.XPEntry
	require.NoError(t, db.Where("user_id = ?", userID).Order("id").Find(&entries).Error)
	return entries
}

func day(offset int) *time.Time {
	d := calendarDay(testNow, time.UTC).AddDate(0, 0, offset)
	return &d
}

// memCache is an in-process Cache.
type memCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetBytes(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	return b, ok
}

func (c *memCache) SetJSON(key string, v interface{}, _ time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.data[key] = b
	c.mu.Unlock()
}

func (c *memCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, prefix)
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
}

var errBoom = errors.New("disk full")

// failingStore fails the selected writes.
type failingStore struct {
	Store
	failUpsert bool
	failXP     bool
}

func (s *failingStore) UpsertProgress(ctx context.Context, p *models.UserProgress, advance bool) error {
	if s.failUpsert {
		return errBoom
	}
	return s.Store.UpsertProgress(ctx, p, advance)
}

func (s *failingStore) InsertXP(ctx context.Context, e *models.XPEntry) error {
	if s.failXP {
		return errBoom
	}
	return s.Store.InsertXP(ctx, e)
}
