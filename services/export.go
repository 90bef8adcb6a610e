package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	ledgerSheet      = "XP Ledger"
	leaderboardSheet = "Leaderboard"
)

// ExportService renders ledger reports as xlsx workbooks.
type ExportService struct {
	store Store
	board *LeaderboardService
	clock Clock
	loc   *time.Location
}

func NewExportService(store Store, board *LeaderboardService, clock Clock, loc *time.Location) *ExportService {
	if clock == nil {
		clock = SystemClock
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{store: store, board: board, clock: clock, loc: loc}
}

// MonthlyReport builds a workbook with the current month's ledger entries and leaderboard.
// The caller owns the returned file and must Close it.
func (s *ExportService) MonthlyReport(ctx context.Context) (*excelize.File, string, error) {
	from := monthStart(s.clock.Now(), s.loc)
	to := from.AddDate(0, 1, 0)

	lines, err := s.store.LedgerEntries(ctx, from, to)
	if err != nil {
		return nil, "", persistErr("load ledger entries", err)
	}
	standings, err := s.board.rank(ctx, from, to, 0)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		f.Close()
		return nil, "", err
	}
	if _, err := f.NewSheet(leaderboardSheet); err != nil {
		f.Close()
		return nil, "", err
	}

	rows := [][]interface{}{{"ID", "User ID", "Username", "Amount", "Description", "Created At"}}
	for _, l := range lines {
		rows = append(rows, []interface{}{l.ID, l.UserID, l.Username, l.Amount, l.Description, l.CreatedAt.In(s.loc).Format(time.RFC3339)})
	}
	if err := writeRows(f, ledgerSheet, rows); err != nil {
		f.Close()
		return nil, "", err
	}

	rows = [][]interface{}{{"Rank", "User ID", "Username", "Total XP"}}
	for _, st := range standings {
		rows = append(rows, []interface{}{st.Rank, st.UserID, st.Username, st.TotalXP})
	}
	if err := writeRows(f, leaderboardSheet, rows); err != nil {
		f.Close()
		return nil, "", err
	}

	name := fmt.Sprintf("bookclub-xp-%s.xlsx", from.Format("2006-01"))
	return f, name, nil
}

// WriteMonthlyReport streams the monthly workbook to w and returns its file name.
func (s *ExportService) WriteMonthlyReport(ctx context.Context, w io.Writer) (string, error) {
	f, name, err := s.MonthlyReport(ctx)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return "", err
	}
	return name, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
