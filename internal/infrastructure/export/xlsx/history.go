package xlsx

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

const (
	SheetName   = "History"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{"Timestamp (UTC)", "File", "Decision", "Summary", "Issues"}

// WriteHistory renders history entries, most recent first, as a single-sheet workbook.
func WriteHistory(w io.Writer, entries []domain.HistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	rejectedStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "#C00000", Bold: true}})
	if err != nil {
		return fmt.Errorf("create decision style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, entry := range entries {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.FileName,
			string(entry.Verdict.Decision),
			entry.Verdict.Summary,
			strings.Join(entry.Verdict.Issues, "\n"),
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if entry.Verdict.Decision == domain.DecisionRejected {
			decisionCell, _ := excelize.CoordinatesToCellName(3, row)
			if err := f.SetCellStyle(SheetName, decisionCell, decisionCell, rejectedStyle); err != nil {
				return fmt.Errorf("style row %d: %w", row, err)
			}
		}
	}

	widths := map[string]float64{"A": 22, "B": 32, "C": 12, "D": 60, "E": 60}
	for col, width := range widths {
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
