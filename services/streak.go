package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bookclub/utils"
)

// MissedDayDescription labels the penalty appended when a streak breaks.
const MissedDayDescription = "Missed a day penalty"

// StreakResult reports the outcome of one Touch.
type StreakResult struct {
	Streak    int  `json:"streak"`
	Changed   bool `json:"changed"`
	Penalized bool `json:"penalized"`
}

// StreakTracker keeps the per-user daily reading streak.
type StreakTracker struct {
	store   Store
	ledger  *Ledger
	clock   Clock
	loc     *time.Location
	penalty int
}

// NewStreakTracker builds a tracker. Calendar days are evaluated in loc.
func NewStreakTracker(store Store, ledger *Ledger, clock Clock, loc *time.Location, penalty int) *StreakTracker {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StreakTracker{store: store, ledger: ledger, clock: clock, loc: loc, penalty: penalty}
}

// Touch records reading activity for today. The profile row is locked for the transition so
// concurrent calls on the same day increment at most once.
func (t *StreakTracker) Touch(ctx context.Context, userID uint) (StreakResult, error) {
	if userID == 0 {
		return StreakResult{}, ErrUnauthenticated
	}
	today := calendarDay(t.clock.Now(), t.loc)
	yesterday := today.AddDate(0, 0, -1)

	var res StreakResult
	err := t.store.Transaction(ctx, func(tx Store) error {
		user, err := tx.LockProfile(ctx, userID)
		if err != nil {
			return err
		}
		res.Streak = user.Streak

		switch {
		case user.LastActiveDate == nil:
			res.Streak = 1
		case storedDay(*user.LastActiveDate).Equal(today):
			return nil
		case storedDay(*user.LastActiveDate).Equal(yesterday):
			res.Streak = user.Streak + 1
		case storedDay(*user.LastActiveDate).After(today):
			// clock skew or a timezone change; treat as already active today
			return nil
		default:
			res.Streak = 1
			if t.penalty > 0 {
				if err := t.ledger.appendTo(ctx, tx, userID, -t.penalty, MissedDayDescription); err != nil {
					return err
				}
				res.Penalized = true
			}
		}
		res.Changed = true
		return tx.UpdateStreak(ctx, userID, res.Streak, today)
	})
	if err != nil {
		utils.Logger.Warn("streak touch failed", zap.Uint("user_id", userID), zap.Error(err))
		return StreakResult{}, persistErr("touch streak", err)
	}
	if res.Penalized {
		t.ledger.Invalidate(userID)
	}
	return res, nil
}
