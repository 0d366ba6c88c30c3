package ports

import (
	"context"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// InvoiceAuditor is the inbound contract shared by the HTTP, CLI and MCP surfaces.
type InvoiceAuditor interface {
	AddFiles(files []domain.IncomingFile) (added int, selection []domain.Document)
	RemoveFile(id domain.DocumentID) bool
	ClearSelection()
	Selection() []domain.Document

	StartAnalysis() (domain.BatchSnapshot, error)
	Retry(id domain.DocumentID) error
	Reset()
	Snapshot() domain.BatchSnapshot
	Wait(ctx context.Context) error
	AnalyzeFiles(ctx context.Context, files []domain.IncomingFile, options domain.AnalyzeOptions) (domain.BatchSnapshot, error)

	History() []domain.HistoryEntry
	ClearHistory(ctx context.Context)
}
