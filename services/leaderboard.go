package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

// Leaderboard periods.
const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

const leaderboardLimit = 50

// Standing is a ranked leaderboard row.
type Standing struct {
	Rank int `json:"rank"`
	LeaderRow
}

// Board is the ranking of one period.
type Board struct {
	Period  string     `json:"period"`
	From    time.Time  `json:"from"`
	To      time.Time  `json:"to"`
	Entries []Standing `json:"entries"`
}

// LeaderboardService ranks users by XP earned within calendar periods.
type LeaderboardService struct {
	store Store
	cache Cache
	clock Clock
	loc   *time.Location
	ttl   time.Duration
}

func NewLeaderboardService(store Store, cache Cache, clock Clock, loc *time.Location, ttl time.Duration) *LeaderboardService {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LeaderboardService{store: store, cache: cache, clock: clock, loc: loc, ttl: ttl}
}

// Bounds returns [from, to) of the period containing now.
func (s *LeaderboardService) Bounds(period string) (time.Time, time.Time, error) {
	now := s.clock.Now()
	switch period {
	case PeriodWeekly:
		from := weekStart(now, s.loc)
		return from, from.AddDate(0, 0, 7), nil
	case PeriodMonthly:
		from := monthStart(now, s.loc)
		return from, from.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// Current returns the ranking for the running week or month.
func (s *LeaderboardService) Current(ctx context.Context, period string) (*Board, error) {
	from, to, err := s.Bounds(period)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s%s:%s", leaderboardKeyPrefix, period, from.Format("2006-01-02"))
	if s.cache != nil {
		if b, ok := s.cache.GetBytes(key); ok {
			var board Board
			if err := json.Unmarshal(b, &board); err == nil {
				return &board, nil
			}
		}
	}
	entries, err := s.rank(ctx, from, to, leaderboardLimit)
	if err != nil {
		return nil, err
	}
	board := &Board{Period: period, From: from, To: to, Entries: entries}
	if s.cache != nil {
		s.cache.SetJSON(key, board, s.ttl)
	}
	return board, nil
}

func (s *LeaderboardService) rank(ctx context.Context, from, to time.Time, limit int) ([]Standing, error) {
	rows, err := s.store.XPTotals(ctx, from, to, limit)
	if err != nil {
		utils.Logger.Error("leaderboard query failed", zap.Time("from", from), zap.Error(err))
		return nil, persistErr("rank xp", err)
	}
	out := make([]Standing, 0, len(rows))
	for i, r := range rows {
		out = append(out, Standing{Rank: i + 1, LeaderRow: r})
	}
	return out, nil
}

// PreviousMonth is the calendar month before the one containing now, as YYYY-MM and [from, to).
func (s *LeaderboardService) PreviousMonth() (string, time.Time, time.Time) {
	to := monthStart(s.clock.Now(), s.loc)
	from := to.AddDate(0, -1, 0)
	return from.Format("2006-01"), from, to
}

// PreviousMonthWinner returns last month's top earner. The stored snapshot wins; without one
// the winner is computed from the ledger. ErrNotFound means nobody earned XP.
func (s *LeaderboardService) PreviousMonthWinner(ctx context.Context) (*models.MonthlyWinner, error) {
	month, from, to := s.PreviousMonth()
	w, err := s.store.GetMonthlyWinner(ctx, month)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, persistErr("load monthly winner", err)
	}
	return s.winner(ctx, month, from, to)
}

// SnapshotPreviousMonth stores last month's winner. It is idempotent per month.
func (s *LeaderboardService) SnapshotPreviousMonth(ctx context.Context) (*models.MonthlyWinner, error) {
	month, from, to := s.PreviousMonth()
	w, err := s.winner(ctx, month, from, to)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveMonthlyWinner(ctx, w); err != nil {
		return nil, persistErr("save monthly winner", err)
	}
	return w, nil
}

func (s *LeaderboardService) winner(ctx context.Context, month string, from, to time.Time) (*models.MonthlyWinner, error) {
	top, err := s.rank(ctx, from, to, 1)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, ErrNotFound
	}
	return &models.MonthlyWinner{
		Month:     month,
		UserID:    top[0].UserID,
		Username:  top[0].Username,
		AvatarURL: top[0].AvatarURL,
		TotalXP:   top[0].TotalXP,
	}, nil
}
