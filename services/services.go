package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/cppla/bookclub/config"
)

// Options carries the tunables the services read from configuration.
type Options struct {
	Location       *time.Location
	Rewards        RewardRules
	MissedPenalty  int
	LeaderboardTTL time.Duration
}

// OptionsFromConfig maps AppConfig onto Options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		Location: cfg.Location(),
		Rewards: RewardRules{
			DefaultDailyPageGoal: cfg.DefaultDailyPageGoal,
			PageXP:               cfg.PageXP,
			ChapterXP:            cfg.ChapterXP,
		},
		MissedPenalty:  cfg.MissedDayPenalty,
		LeaderboardTTL: time.Duration(cfg.LeaderboardCacheSec) * time.Second,
	}
}

// Services bundles the application services over one Store.
type Services struct {
	Store       Store
	Ledger      *Ledger
	Streak      *StreakTracker
	Progress    *ProgressService
	Dashboard   *DashboardService
	Leaderboard *LeaderboardService
	Export      *ExportService
}

// New wires every service. cache and clock may be nil.
func New(store Store, cache Cache, clock Clock, opts Options) *Services {
	if clock == nil {
		clock = SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	ledger := NewLedger(store, cache, clock)
	streak := NewStreakTracker(store, ledger, clock, opts.Location, opts.MissedPenalty)
	board := NewLeaderboardService(store, cache, clock, opts.Location, opts.LeaderboardTTL)
	return &Services{
		Store:       store,
		Ledger:      ledger,
		Streak:      streak,
		Progress:    NewProgressService(store, streak, ledger, clock, opts.Rewards),
		Dashboard:   NewDashboardService(store, ledger),
		Leaderboard: board,
		Export:      NewExportService(store, board, clock, opts.Location),
	}
}

// NewFromDB is New over a GormStore.
func NewFromDB(db *gorm.DB, cache Cache, clock Clock, opts Options) *Services {
	return New(NewGormStore(db), cache, clock, opts)
}
