package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/bookclub/models"
	"github.com/cppla/bookclub/utils"
)

// Cache is the read-through cache used for derived totals. A nil Cache disables caching.
type Cache interface {
	GetBytes(key string) ([]byte, bool)
	SetJSON(key string, v interface{}, ttl time.Duration)
	InvalidatePrefix(prefix string)
}

const (
	xpTotalKeyPrefix     = "cache:xp:total:"
	leaderboardKeyPrefix = "cache:leaderboard:"
	xpTotalTTL           = 10 * time.Minute
)

func xpTotalKey(userID uint) string {
	return fmt.Sprintf("%s%d", xpTotalKeyPrefix, userID)
}

// Ledger is the append-only XP ledger.
type Ledger struct {
	store Store
	cache Cache
	clock Clock
}

// NewLedger builds a ledger over store; cache may be nil.
func NewLedger(store Store, cache Cache, clock Clock) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	return &Ledger{store: store, cache: cache, clock: clock}
}

// Append inserts one immutable entry. Entries are never updated or deleted.
func (l *Ledger) Append(ctx context.Context, userID uint, amount int, description string) error {
	if userID == 0 {
		return ErrUnauthenticated
	}
	if err := l.appendTo(ctx, l.store, userID, amount, description); err != nil {
		return err
	}
	l.Invalidate(userID)
	return nil
}

func (l *Ledger) appendTo(ctx context.Context, store Store, userID uint, amount int, description string) error {
	entry := &models.XPEntry{
		UserID:      userID,
		Amount:      amount,
		Description: description,
		CreatedAt:   l.clock.Now().UTC(),
	}
	if err := store.InsertXP(ctx, entry); err != nil {
		utils.Logger.Error("xp ledger insert failed",
			zap.Uint("user_id", userID),
			zap.Int("amount", amount),
			zap.String("description", description),
			zap.Error(err),
		)
		return persistErr("insert xp entry", err)
	}
	return nil
}

// Invalidate drops cached totals that include userID's entries.
func (l *Ledger) Invalidate(userID uint) {
	if l.cache == nil {
		return
	}
	l.cache.InvalidatePrefix(xpTotalKey(userID))
	l.cache.InvalidatePrefix(leaderboardKeyPrefix)
}

// TotalFor is the sum of every entry of userID.
func (l *Ledger) TotalFor(ctx context.Context, userID uint) (int, error) {
	key := xpTotalKey(userID)
	if l.cache != nil {
		if b, ok := l.cache.GetBytes(key); ok {
			var total int
			if err := json.Unmarshal(b, &total); err == nil {
				return total, nil
			}
		}
	}
	total, err := l.store.SumXP(ctx, userID)
	if err != nil {
		return 0, persistErr("sum xp", err)
	}
	if l.cache != nil {
		l.cache.SetJSON(key, total, xpTotalTTL)
	}
	return total, nil
}
