// File: internal/accounts/workbook.go
package accounts

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// ImportWorkbook merges accounts from an Excel workbook into the roster.
// The first sheet is read; its header row is matched case-insensitively
// against the roster's column names. Rows whose username already exists are
// skipped. Returns the number of accounts added.
func (s *Store) ImportWorkbook(path string) (int, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return 0, fmt.Errorf("workbook %q has no sheets", path)
	}
	sheet := wb.Sheets[0]
	if len(sheet.Rows) < 2 {
		return 0, nil
	}

	header := make([]string, 0, len(sheet.Rows[0].Cells))
	for _, c := range sheet.Rows[0].Cells {
		header = append(header, c.String())
	}
	idx := headerIndex(header)
	if _, ok := idx["username"]; !ok {
		return 0, fmt.Errorf("workbook %q is missing a Username column", path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range sheet.Rows[1:] {
		row := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			row = append(row, c.String())
		}
		acc := rowToAccount(row, idx)
		if acc.Username == "" || s.find(acc.Username) != nil {
			continue
		}
		if strings.TrimSpace(get(row, idx, "active")) == "" {
			// Imported rows default to active; the sheet rarely carries the
			// column at all.
			acc.Active = true
		}
		s.accounts = append(s.accounts, acc)
		added++
	}

	if added > 0 {
		if err := s.save(); err != nil {
			return added, err
		}
	}
	s.logger.Info("Imported workbook", zap.String("path", path), zap.Int("added", added))
	return added, nil
}

func get(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
