package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/bookclub/models"
)

// Store is the persistence collaborator of the progress and reward services.
type Store interface {
	GetPlan(ctx context.Context, planID uint) (*models.ReadingPlan, error)
	PlansByIDs(ctx context.Context, ids []uint) (map[uint]models.ReadingPlan, error)
	GetProgress(ctx context.Context, userID, planID uint) (*models.UserProgress, error)
	ListProgress(ctx context.Context, userID uint) ([]models.UserProgress, error)
	// UpsertProgress writes the record keyed by (user, plan). Furthest columns are only
	// written when advanceFurthest is set.
	UpsertProgress(ctx context.Context, p *models.UserProgress, advanceFurthest bool) error

	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	LockProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateStreak(ctx context.Context, userID uint, streak int, day time.Time) error

	InsertXP(ctx context.Context, e *models.XPEntry) error
	SumXP(ctx context.Context, userID uint) (int, error)
	XPTotals(ctx context.Context, from, to time.Time, limit int) ([]LeaderRow, error)
	LedgerEntries(ctx context.Context, from, to time.Time) ([]LedgerLine, error)

	GetMonthlyWinner(ctx context.Context, month string) (*models.MonthlyWinner, error)
	SaveMonthlyWinner(ctx context.Context, w *models.MonthlyWinner) error

	Transaction(ctx context.Context, fn func(Store) error) error
}

// LeaderRow is one aggregated XP total.
type LeaderRow struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	TotalXP   int    `json:"total_xp"`
}

// LedgerLine is a ledger entry joined with its owner's username.
type LedgerLine struct {
	ID          uint      `json:"id"`
	UserID      uint      `json:"user_id"`
	Username    string    `json:"username"`
	Amount      int       `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// GormStore implements Store on gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) GetPlan(ctx context.Context, planID uint) (*models.ReadingPlan, error) {
	var plan models.ReadingPlan
	if err := s.db.WithContext(ctx).First(&plan, planID).Error; err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (s *GormStore) PlansByIDs(ctx context.Context, ids []uint) (map[uint]models.ReadingPlan, error) {
	out := make(map[uint]models.ReadingPlan, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var plans []models.ReadingPlan
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&plans).Error; err != nil {
		return nil, err
	}
	for _, p := range plans {
		out[p.ID] = p
	}
	return out, nil
}

func (s *GormStore) GetProgress(ctx context.Context, userID, planID uint) (*models.UserProgress, error) {
	var p models.UserProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND plan_id = ?", userID, planID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *GormStore) ListProgress(ctx context.Context, userID uint) ([]models.UserProgress, error) {
	var items []models.UserProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_read_at DESC").
		Find(&items).Error
	return items, err
}

func (s *GormStore) UpsertProgress(ctx context.Context, p *models.UserProgress, advanceFurthest bool) error {
	cols := []string{"current_chapter", "current_page", "is_completed", "last_read_at", "updated_at"}
	if advanceFurthest {
		cols = append(cols, "furthest_chapter", "furthest_page")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "plan_id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(p).Error
}

func (s *GormStore) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// LockProfile selects the profile FOR UPDATE; only meaningful inside Transaction.
func (s *GormStore) LockProfile(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, userID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *GormStore) UpdateStreak(ctx context.Context, userID uint, streak int, day time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"streak":           streak,
			"last_active_date": DateParam(day),
		}).Error
}

func (s *GormStore) InsertXP(ctx context.Context, e *models.XPEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *GormStore) SumXP(ctx context.Context, userID uint) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.XPEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return int(total), err
}

// XPTotals sums ledger entries created in [from, to) per user. Only positive totals are
// returned, highest first; ties go to the lower user id.
func (s *GormStore) XPTotals(ctx context.Context, from, to time.Time, limit int) ([]LeaderRow, error) {
	var rows []LeaderRow
	q := s.db.WithContext(ctx).Table("xp_ledger AS x").
		Select("x.user_id AS user_id, u.username AS username, u.avatar_url AS avatar_url, SUM(x.amount) AS total_xp").
		Joins("JOIN users u ON u.id = x.user_id AND u.deleted_at IS NULL").
		Where("x.created_at >= ? AND x.created_at < ?", from.UTC(), to.UTC()).
		Group("x.user_id, u.username, u.avatar_url").
		Having("SUM(x.amount) > 0").
		Order("total_xp DESC, x.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&rows).Error
	return rows, err
}

// LedgerEntries lists entries created in [from, to), oldest first.
func (s *GormStore) LedgerEntries(ctx context.Context, from, to time.Time) ([]LedgerLine, error) {
	var lines []LedgerLine
	err := s.db.WithContext(ctx).Table("xp_ledger AS x").
		Select("x.id AS id, x.user_id AS user_id, u.username AS username, x.amount AS amount, x.description AS description, x.created_at AS created_at").
		Joins("LEFT JOIN users u ON u.id = x.user_id").
		Where("x.created_at >= ? AND x.created_at < ?", from.UTC(), to.UTC()).
		Order("x.created_at ASC, x.id ASC").
		Scan(&lines).Error
	return lines, err
}

func (s *GormStore) GetMonthlyWinner(ctx context.Context, month string) (*models.MonthlyWinner, error) {
	var w models.MonthlyWinner
	if err := s.db.WithContext(ctx).Where("month = ?", month).First(&w).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// SaveMonthlyWinner inserts the snapshot, replacing an existing one for the same month.
func (s *GormStore) SaveMonthlyWinner(ctx context.Context, w *models.MonthlyWinner) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "username", "avatar_url", "total_xp"}),
	}).Create(w).Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
