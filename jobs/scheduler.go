// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/services"
	"github.com/cppla/bookclub/storage"
	"github.com/cppla/bookclub/utils"
)

// Schedules, evaluated in the app timezone.
const (
	MonthlyWinnerSpec     = "5 0 1 * *"
	LeaderboardWarmupSpec = "*/5 * * * *"
	OrphanSweepSpec       = "17 * * * *"
)

// Scheduler owns the cron runner.
type Scheduler struct {
	cron        *cron.Cron
	db          *gorm.DB
	board       *services.LeaderboardService
	storage     storage.Storage
	orphanAfter time.Duration
}

// NewScheduler builds a scheduler whose specs fire in loc.
func NewScheduler(db *gorm.DB, board *services.LeaderboardService, st storage.Storage, loc *time.Location, orphanAfter time.Duration) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if orphanAfter <= 0 {
		orphanAfter = 24 * time.Hour
	}
	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		db:          db,
		board:       board,
		storage:     st,
		orphanAfter: orphanAfter,
	}
}

// Start registers every job and starts the runner.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"monthly-winner", MonthlyWinnerSpec, s.snapshotMonthlyWinner},
		{"leaderboard-warmup", LeaderboardWarmupSpec, s.warmLeaderboards},
		{"orphan-sweep", OrphanSweepSpec, func(ctx context.Context) error {
			_, err := SweepOrphanUploads(ctx, s.db, s.storage, time.Now().Add(-s.orphanAfter))
			return err
		}},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			utils.Logger.Debug("cron job start", zap.String("job", j.name))
			if err := j.run(ctx); err != nil {
				utils.Logger.Error("cron job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	utils.Logger.Info("scheduler started", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	utils.Logger.Info("scheduler stopped")
}

func (s *Scheduler) snapshotMonthlyWinner(ctx context.Context) error {
	w, err := s.board.SnapshotPreviousMonth(ctx)
	if errors.Is(err, services.ErrNotFound) {
		utils.Logger.Info("no xp earned last month, no winner stored")
		return nil
	}
	if err != nil {
		return err
	}
	utils.Logger.Info("monthly winner stored",
		zap.String("month", w.Month),
		zap.Uint("user_id", w.UserID),
		zap.Int("total_xp", w.TotalXP),
	)
	return nil
}

func (s *Scheduler) warmLeaderboards(ctx context.Context) error {
	for _, p := range []string{services.PeriodWeekly, services.PeriodMonthly} {
		if _, err := s.board.Current(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// SweepOrphanUploads deletes uploads never attached to a plan or profile and created before
// cutoff. The row is removed even when the object is already gone.
func SweepOrphanUploads(ctx context.Context, db *gorm.DB, st storage.Storage, cutoff time.Time) (int, error) {
	if st == nil {
		return 0, nil
	}
	var items []models.UploadedFile
	err := db.WithContext(ctx).
		Where("attached_at IS NULL AND created_at < ?", cutoff).
		Order("id").
		Limit(200).
		Find(&items).Error
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if err := st.Delete(ctx, it.Key); err != nil {
			utils.Logger.Warn("orphan upload delete failed", zap.String("key", it.Key), zap.Error(err))
			continue
		}
		if err := db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		utils.Logger.Info("orphan uploads swept", zap.Int("count", removed))
	}
	return removed, nil
}
