package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// AuditSession ties one selection and one orchestrator to a shared history.
type AuditSession struct {
	intake       *Intake
	selection    *SelectionStore
	orchestrator *AnalysisOrchestrator
	history      *HistoryStore
	logger       *slog.Logger
}

func NewAuditSession(
	intake *Intake,
	orchestrator *AnalysisOrchestrator,
	history *HistoryStore,
	logger *slog.Logger,
) *AuditSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSession{
		intake:       intake,
		selection:    NewSelectionStore(),
		orchestrator: orchestrator,
		history:      history,
		logger:       logger,
	}
}

func (s *AuditSession) AddFiles(files []domain.IncomingFile) (int, []domain.Document) {
	docs := s.intake.Accept(files)
	added := s.selection.Add(docs)
	s.logger.Info("selection_files_added", "offered", len(files), "accepted", len(docs), "added", added)
	return added, s.selection.Items()
}

func (s *AuditSession) RemoveFile(id domain.DocumentID) bool {
	return s.selection.Remove(id)
}

func (s *AuditSession) ClearSelection() {
	s.selection.Clear()
}

func (s *AuditSession) Selection() []domain.Document {
	return s.selection.Items()
}

// StartAnalysis analyzes the current selection as a new batch.
func (s *AuditSession) StartAnalysis() (domain.BatchSnapshot, error) {
	if _, err := s.orchestrator.Start(s.selection.Items()); err != nil {
		return domain.BatchSnapshot{}, err
	}
	return s.orchestrator.Snapshot(), nil
}

// AnalyzeFiles analyzes files as a batch of its own and waits for it to settle. The batch has a
// private selection and orchestrator, so it never touches the interactive batch or another caller's.
func (s *AuditSession) AnalyzeFiles(
	ctx context.Context,
	files []domain.IncomingFile,
	options domain.AnalyzeOptions,
) (domain.BatchSnapshot, error) {
	selection := NewSelectionStore()
	selection.Add(s.intake.Accept(files))

	run := s.orchestrator.Fork()
	if _, err := run.Start(selection.Items()); err != nil {
		return domain.BatchSnapshot{}, err
	}
	if err := run.Wait(ctx); err != nil {
		return run.Snapshot(), err
	}
	if options.RetryFailed {
		retried, err := retryFailed(ctx, run)
		if err != nil {
			return run.Snapshot(), err
		}
		s.logger.Info("one_shot_retry_finished", "retried", retried)
	}
	return run.Snapshot(), nil
}

func retryFailed(ctx context.Context, run *AnalysisOrchestrator) (int, error) {
	retried := 0
	for _, file := range run.Snapshot().Files {
		if file.Phase != domain.PhaseFailed {
			continue
		}
		if err := run.Retry(file.DocumentID); err != nil {
			return retried, err
		}
		retried++
	}
	if retried == 0 {
		return 0, nil
	}
	return retried, run.Wait(ctx)
}

func (s *AuditSession) Retry(id domain.DocumentID) error {
	return s.orchestrator.Retry(id)
}

// Reset drops the selection and abandons the running batch.
func (s *AuditSession) Reset() {
	s.selection.Clear()
	s.orchestrator.Reset()
}

func (s *AuditSession) Snapshot() domain.BatchSnapshot {
	return s.orchestrator.Snapshot()
}

func (s *AuditSession) Wait(ctx context.Context) error {
	return s.orchestrator.Wait(ctx)
}

func (s *AuditSession) History() []domain.HistoryEntry {
	return s.history.Entries()
}

func (s *AuditSession) ClearHistory(ctx context.Context) {
	s.history.Clear(ctx)
}
