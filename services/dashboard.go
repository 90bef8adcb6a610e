package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/cppla/bookclub/models"
)

// PlanProgress pairs a plan with the caller's record for it.
type PlanProgress struct {
	Plan     models.ReadingPlan  `json:"plan"`
	Progress models.UserProgress `json:"progress"`
}

// Dashboard is the caller's reading summary. Badges are recomputed on every read.
type Dashboard struct {
	Streak       int            `json:"streak"`
	XPTotal      int            `json:"xp_total"`
	PagesRead    int            `json:"pages_read"`
	ChaptersRead int            `json:"chapters_read"`
	Badges       []string       `json:"badges"`
	Catalog      []BadgeStatus  `json:"catalog"`
	LastRead     *PlanProgress  `json:"last_read,omitempty"`
	Progress     []PlanProgress `json:"progress"`
}

// DashboardService assembles dashboards.
type DashboardService struct {
	store  Store
	ledger *Ledger
}

func NewDashboardService(store Store, ledger *Ledger) *DashboardService {
	return &DashboardService{store: store, ledger: ledger}
}

// For loads the dashboard of userID. Reading volume counts the high-water marks, so
// re-reading never inflates it and badges derived from it never disappear.
func (s *DashboardService) For(ctx context.Context, userID uint) (*Dashboard, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var (
		user    *models.User
		records []models.UserProgress
		xpTotal int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetProfile(gctx, userID)
		user = u
		return err
	})
	g.Go(func() error {
		items, err := s.store.ListProgress(gctx, userID)
		records = items
		return err
	})
	g.Go(func() error {
		total, err := s.ledger.TotalFor(gctx, userID)
		xpTotal = total
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, persistErr("load dashboard", err)
	}

	ids := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.PlanID)
	}
	plans, err := s.store.PlansByIDs(ctx, ids)
	if err != nil {
		return nil, persistErr("load dashboard plans", err)
	}

	d := &Dashboard{
		Streak:   user.Streak,
		XPTotal:  xpTotal,
		Progress: make([]PlanProgress, 0, len(records)),
	}
	for _, r := range records {
		d.PagesRead += r.FurthestPage
		d.ChaptersRead += r.FurthestChapter
		plan, ok := plans[r.PlanID]
		if !ok {
			continue
		}
		pp := PlanProgress{Plan: plan, Progress: r}
		d.Progress = append(d.Progress, pp)
		if d.LastRead == nil || r.LastReadAt.After(d.LastRead.Progress.LastReadAt) {
			last := pp
			d.LastRead = &last
		}
	}
	d.Badges = EvaluateReader(d.Streak, d.PagesRead, d.ChaptersRead, d.XPTotal)
	d.Catalog = CatalogStatus(d.Badges)
	return d, nil
}
