package cliadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	approvedStyle = cellStyle.Foreground(lipgloss.Color("42"))
	rejectedStyle = cellStyle.Foreground(lipgloss.Color("196")).Bold(true)
	failedStyle   = cellStyle.Foreground(lipgloss.Color("208"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

const maxCellWidth = 60

// RenderSnapshot draws one row per file of the batch.
func RenderSnapshot(snapshot domain.BatchSnapshot) string {
	rows := make([][]string, 0, len(snapshot.Files))
	for _, file := range snapshot.Files {
		rows = append(rows, []string{
			file.FileName,
			outcomeLabel(file),
			truncate(detailText(file)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("FILE", "RESULT", "DETAILS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(snapshot.Files) {
				return outcomeStyle(snapshot.Files[row])
			}
			return cellStyle
		})

	summary := dimStyle.Render(fmt.Sprintf(
		"%d files: %d succeeded, %d failed, %d analyzing",
		len(snapshot.Files), snapshot.Succeeded, snapshot.Failed, snapshot.Analyzing,
	))
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Invoice audit"), t.Render(), summary)
}

// RenderHistory draws past verdicts, most recent first.
func RenderHistory(entries []domain.HistoryEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("History is empty.")
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Timestamp.Local().Format(time.DateTime),
			entry.FileName,
			string(entry.Verdict.Decision),
			truncate(verdictText(entry.Verdict)),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("WHEN", "FILE", "DECISION", "DETAILS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(entries) {
				return decisionStyle(entries[row].Verdict.Decision)
			}
			return cellStyle
		})

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Audit history"), t.Render())
}

// RenderEvent formats one analysis event as a single line.
func RenderEvent(event domain.AnalysisEvent) string {
	stamp := dimStyle.Render(event.OccurredAt.Local().Format(time.TimeOnly))
	switch {
	case event.Phase == domain.PhaseFailed:
		return fmt.Sprintf("%s %s %s: %s", stamp, failedStyle.Render("FAILED"), event.FileName, event.Error)
	case event.Verdict != nil:
		return fmt.Sprintf("%s %s %s: %s", stamp, decisionStyle(event.Verdict.Decision).Render(string(event.Verdict.Decision)),
			event.FileName, event.Verdict.Summary)
	default:
		return fmt.Sprintf("%s %s %s", stamp, event.Phase, event.FileName)
	}
}

func outcomeLabel(file domain.FileAnalysisState) string {
	switch {
	case file.Phase == domain.PhaseSucceeded && file.Verdict != nil:
		return string(file.Verdict.Decision)
	case file.Phase == domain.PhaseFailed:
		return "FAILED"
	default:
		return "ANALYZING"
	}
}

func outcomeStyle(file domain.FileAnalysisState) lipgloss.Style {
	switch {
	case file.Phase == domain.PhaseSucceeded && file.Verdict != nil:
		return decisionStyle(file.Verdict.Decision)
	case file.Phase == domain.PhaseFailed:
		return failedStyle
	default:
		return cellStyle
	}
}

func decisionStyle(decision domain.Decision) lipgloss.Style {
	if decision == domain.DecisionRejected {
		return rejectedStyle
	}
	return approvedStyle
}

func detailText(file domain.FileAnalysisState) string {
	switch {
	case file.Phase == domain.PhaseFailed:
		return file.Error
	case file.Verdict != nil:
		return verdictText(*file.Verdict)
	default:
		return ""
	}
}

func verdictText(verdict domain.Verdict) string {
	if len(verdict.Issues) == 0 {
		return verdict.Summary
	}
	return verdict.Summary + " Issues: " + strings.Join(verdict.Issues, "; ")
}

func truncate(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxCellWidth {
		return string(runes)
	}
	return string(runes[:maxCellWidth-1]) + "…"
}
