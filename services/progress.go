package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

// ReadChapterDescription labels XP earned in chapter mode.
const ReadChapterDescription = "Read chapter"

// RewardRules configures advancement and its XP.
type RewardRules struct {
	DefaultDailyPageGoal int
	PageXP               int
	ChapterXP            int
}

// AdvanceResult is the state computed by one advancement. The computed Progress is returned
// even when a write failed; Notices lists such failures and Reconciled carries the stored
// record read back after a failed position write.
type AdvanceResult struct {
	Progress   models.UserProgress  `json:"progress"`
	Earned     bool                 `json:"earned"`
	XPAwarded  int                  `json:"xp_awarded"`
	Streak     *StreakResult        `json:"streak,omitempty"`
	Notices    []string             `json:"notices,omitempty"`
	Reconciled *models.UserProgress `json:"reconciled,omitempty"`
}

// ProgressService advances and saves reading positions.
type ProgressService struct {
	store  Store
	streak *StreakTracker
	ledger *Ledger
	clock  Clock
	rules  RewardRules
}

// NewProgressService wires the progress flow.
func NewProgressService(store Store, streak *StreakTracker, ledger *Ledger, clock Clock, rules RewardRules) *ProgressService {
	if clock == nil {
		clock = SystemClock
	}
	if rules.DefaultDailyPageGoal <= 0 {
		rules.DefaultDailyPageGoal = 10
	}
	return &ProgressService{store: store, streak: streak, ledger: ledger, clock: clock, rules: rules}
}

// Advance moves userID one step forward in planID: one daily page goal in page mode, one
// chapter otherwise. XP is only granted for ground not covered before.
// Order is fixed: position, streak, XP.
func (s *ProgressService) Advance(ctx context.Context, userID, planID uint) (*AdvanceResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	plan, prev, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	cur, _ := prev.Position(plan.PageMode())
	var next int
	if plan.PageMode() {
		goal := plan.DailyPageGoal
		if goal <= 0 {
			goal = s.rules.DefaultDailyPageGoal
		}
		next = min(plan.TotalPages, cur+goal)
	} else {
		next = min(plan.TotalChapters, cur+1)
	}

	res := s.persist(ctx, userID, plan, prev, next)

	st, err := s.streak.Touch(ctx, userID)
	if err != nil {
		res.Notices = append(res.Notices, "streak could not be updated")
	} else {
		res.Streak = &st
	}

	if res.Earned {
		amount, desc := s.rules.ChapterXP, ReadChapterDescription
		if plan.PageMode() {
			amount, desc = s.rules.PageXP, fmt.Sprintf("Read page %d", next)
		}
		if err := s.ledger.Append(ctx, userID, amount, desc); err != nil {
			res.Notices = append(res.Notices, "xp could not be recorded")
		} else {
			res.XPAwarded = amount
		}
	}
	return res, nil
}

// SavePosition stores an explicit position (e.g. the reader's last open page). It moves the
// high-water mark like Advance but never grants XP and never touches the streak.
// Positions beyond the plan total are clamped.
func (s *ProgressService) SavePosition(ctx context.Context, userID, planID uint, position int) (*AdvanceResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if position < 0 {
		return nil, ErrInvalidPosition
	}
	plan, prev, err := s.load(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, userID, plan, prev, min(plan.Total(), position)), nil
}

func (s *ProgressService) load(ctx context.Context, userID, planID uint) (*models.ReadingPlan, *models.UserProgress, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, nil, persistErr("load plan", err)
	}
	prev, err := s.store.GetProgress(ctx, userID, planID)
	if errors.Is(err, ErrNotFound) {
		// no record yet: zero progress
		prev = &models.UserProgress{UserID: userID, PlanID: planID}
	} else if err != nil {
		return nil, nil, persistErr("load progress", err)
	}
	return plan, prev, nil
}

// persist computes the record for position next, writes it and reports whether new ground was
// covered. A failed write is logged and returned as a notice.
func (s *ProgressService) persist(ctx context.Context, userID uint, plan *models.ReadingPlan, prev *models.UserProgress, next int) *AdvanceResult {
	_, furthest := prev.Position(plan.PageMode())
	earned := next > furthest

	rec := *prev
	rec.ID = 0
	rec.UserID, rec.PlanID = userID, plan.ID
	rec.LastReadAt = s.clock.Now()
	rec.UpdatedAt = rec.LastReadAt
	if plan.PageMode() {
		rec.CurrentPage = next
		if earned {
			rec.FurthestPage = next
		}
		furthest = rec.FurthestPage
	} else {
		rec.CurrentChapter = next
		if earned {
			rec.FurthestChapter = next
		}
		furthest = rec.FurthestChapter
	}
	rec.IsCompleted = plan.Total() > 0 && furthest >= plan.Total()

	res := &AdvanceResult{Earned: earned}
	if err := s.store.UpsertProgress(ctx, &rec, earned); err != nil {
		utils.Logger.Error("save progress failed",
			zap.Uint("user_id", userID),
			zap.Uint("plan_id", plan.ID),
			zap.Int("position", next),
			zap.Error(err),
		)
		res.Notices = append(res.Notices, "progress could not be saved")
		if stored, rerr := s.store.GetProgress(ctx, userID, plan.ID); rerr == nil {
			res.Reconciled = stored
		}
	}
	if rec.ID == 0 {
		rec.ID = prev.ID
	}
	res.Progress = rec
	return res
}

// List returns the caller's progress records, most recently read first.
func (s *ProgressService) List(ctx context.Context, userID uint) ([]models.UserProgress, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	items, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, persistErr("list progress", err)
	}
	return items, nil
}
