package ports

import (
	"context"
	"time"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

// InvoiceAnalyzer sends one document to the generative-AI service and parses its verdict.
// Failures carry one of domain.ErrConfiguration, domain.ErrResponseFormat or domain.ErrTransport.
type InvoiceAnalyzer interface {
	Analyze(ctx context.Context, doc domain.Document) (domain.Verdict, error)
}

// KeyValueStore is the text persistence boundary. Get returns domain.ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// HistoryRecorder receives verdicts of successful analyses.
type HistoryRecorder interface {
	Append(ctx context.Context, entry domain.HistoryEntry)
}

// AnalysisEventPublisher announces per-file analysis outcomes.
type AnalysisEventPublisher interface {
	PublishAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error
}

// AnalysisEventSubscriber streams analysis outcomes until ctx is done.
type AnalysisEventSubscriber interface {
	SubscribeAnalysisEvents(ctx context.Context, handler func(context.Context, domain.AnalysisEvent) error) error
}

// PageCounter inspects a PDF for its page count.
type PageCounter interface {
	CountPages(content []byte) (int, error)
}

// TextExtractor extracts plain text from a PDF document.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

// AnalysisObserver records orchestration metrics.
type AnalysisObserver interface {
	StartAnalysis()
	FinishAnalysis(outcome domain.Phase, duration time.Duration)
	StaleCompletion()
	HistoryPersistFailed()
}
