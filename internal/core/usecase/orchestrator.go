package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
)

const DefaultMaxInFlight = 4

type OrchestratorOptions struct {
	// MaxInFlight bounds concurrent analyzer calls across the batch and its retries.
	MaxInFlight int
	Events      ports.AnalysisEventPublisher
	Observer    ports.AnalysisObserver
	Logger      *slog.Logger
	// BaseContext scopes every analyzer call. Resetting a batch does not cancel it.
	BaseContext context.Context
}

// AnalysisOrchestrator runs one analyzer call per document and tracks each document's phase
// independently. Every batch gets a new generation; completions from older generations are dropped.
type AnalysisOrchestrator struct {
	analyzer ports.InvoiceAnalyzer
	history  ports.HistoryRecorder
	events   ports.AnalysisEventPublisher
	observer ports.AnalysisObserver
	logger   *slog.Logger
	baseCtx  context.Context
	slots    *semaphore.Weighted
	now      func() time.Time

	// generations is shared with forks so batch generations stay unique per process.
	generations *atomic.Uint64

	mu         sync.Mutex
	generation uint64
	status     domain.BatchStatus
	order      []domain.DocumentID
	docs       map[domain.DocumentID]domain.Document
	states     map[domain.DocumentID]domain.FileAnalysisState
	pending    int
	settled    chan struct{}
}

func NewAnalysisOrchestrator(
	analyzer ports.InvoiceAnalyzer,
	history ports.HistoryRecorder,
	options OrchestratorOptions,
) *AnalysisOrchestrator {
	maxInFlight := options.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := options.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	baseCtx := options.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &AnalysisOrchestrator{
		analyzer: analyzer,
		history:  history,
		events:   options.Events,
		observer: observer,
		logger:   logger,
		baseCtx:  baseCtx,
		slots:    semaphore.NewWeighted(int64(maxInFlight)),
		now:      func() time.Time { return time.Now().UTC() },

		generations: new(atomic.Uint64),
		status:      domain.BatchIdle,
		docs:        make(map[domain.DocumentID]domain.Document),
		states:      make(map[domain.DocumentID]domain.FileAnalysisState),
	}
}

// Fork returns an orchestrator with its own batch state. It shares the analyzer, history,
// event sink and the in-flight bound with o.
func (o *AnalysisOrchestrator) Fork() *AnalysisOrchestrator {
	return &AnalysisOrchestrator{
		analyzer: o.analyzer,
		history:  o.history,
		events:   o.events,
		observer: o.observer,
		logger:   o.logger,
		baseCtx:  o.baseCtx,
		slots:    o.slots,
		now:      o.now,

		generations: o.generations,
		status:      domain.BatchIdle,
		docs:        make(map[domain.DocumentID]domain.Document),
		states:      make(map[domain.DocumentID]domain.FileAnalysisState),
	}
}

// Start marks every document ANALYZING and launches one analyzer call per document.
func (o *AnalysisOrchestrator) Start(docs []domain.Document) (uint64, error) {
	if len(docs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "start analysis", errors.New("no documents selected"))
	}

	o.mu.Lock()
	o.closeSettledLocked()
	o.generation = o.generations.Add(1)
	gen := o.generation
	o.order = o.order[:0]
	o.docs = make(map[domain.DocumentID]domain.Document, len(docs))
	o.states = make(map[domain.DocumentID]domain.FileAnalysisState, len(docs))

	now := o.now()
	launch := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if _, dup := o.docs[doc.ID]; dup {
			continue
		}
		o.order = append(o.order, doc.ID)
		o.docs[doc.ID] = doc
		o.states[doc.ID] = domain.FileAnalysisState{
			DocumentID: doc.ID,
			FileName:   doc.Name,
			Size:       doc.Size,
			Phase:      domain.PhaseAnalyzing,
			Attempts:   1,
			UpdatedAt:  now,
		}
		launch = append(launch, doc)
	}
	o.pending = len(launch)
	o.status = domain.BatchRunning
	o.settled = make(chan struct{})
	o.mu.Unlock()

	o.logger.Info("analysis_batch_started", "generation", gen, "documents", len(launch))
	for _, doc := range launch {
		go o.run(gen, doc, 1)
	}
	return gen, nil
}

// Retry re-issues a single analyzer call for a FAILED document of the current batch.
func (o *AnalysisOrchestrator) Retry(id domain.DocumentID) error {
	o.mu.Lock()
	state, ok := o.states[id]
	if !ok {
		o.mu.Unlock()
		return domain.WrapError(domain.ErrNotFound, "retry analysis", fmt.Errorf("document %s", id))
	}
	if state.Phase != domain.PhaseFailed {
		o.mu.Unlock()
		return domain.WrapError(domain.ErrNotRetryable, "retry analysis", fmt.Errorf("document %s is %s", id, state.Phase))
	}

	gen := o.generation
	doc := o.docs[id]
	state.Phase = domain.PhaseAnalyzing
	state.Error = ""
	state.Verdict = nil
	state.Attempts++
	state.UpdatedAt = o.now()
	o.states[id] = state
	attempt := state.Attempts

	o.pending++
	if o.status != domain.BatchRunning {
		o.status = domain.BatchRunning
		o.settled = make(chan struct{})
	}
	o.mu.Unlock()

	o.logger.Info("analysis_retry", "generation", gen, "document_id", id, "file_name", doc.Name, "attempt", attempt)
	go o.run(gen, doc, attempt)
	return nil
}

// Reset abandons the current batch. In-flight calls keep running; their results are discarded.
func (o *AnalysisOrchestrator) Reset() {
	o.mu.Lock()
	o.closeSettledLocked()
	o.generation = o.generations.Add(1)
	o.status = domain.BatchIdle
	o.order = nil
	o.docs = make(map[domain.DocumentID]domain.Document)
	o.states = make(map[domain.DocumentID]domain.FileAnalysisState)
	o.pending = 0
	gen := o.generation
	o.mu.Unlock()

	o.logger.Info("analysis_reset", "generation", gen)
}

// Wait blocks until every outstanding call of the current batch has settled.
func (o *AnalysisOrchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	if o.status != domain.BatchRunning {
		o.mu.Unlock()
		return nil
	}
	settled := o.settled
	o.mu.Unlock()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *AnalysisOrchestrator) Snapshot() domain.BatchSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := domain.BatchSnapshot{
		Generation: o.generation,
		Status:     o.status,
		Files:      make([]domain.FileAnalysisState, 0, len(o.order)),
	}
	for _, id := range o.order {
		state := o.states[id]
		if state.Verdict != nil {
			verdict := cloneVerdict(*state.Verdict)
			state.Verdict = &verdict
		}
		switch state.Phase {
		case domain.PhaseAnalyzing:
			snapshot.Analyzing++
		case domain.PhaseSucceeded:
			snapshot.Succeeded++
		case domain.PhaseFailed:
			snapshot.Failed++
		}
		snapshot.Files = append(snapshot.Files, state)
	}
	return snapshot
}

func (o *AnalysisOrchestrator) run(gen uint64, doc domain.Document, attempt int) {
	if err := o.slots.Acquire(o.baseCtx, 1); err != nil {
		o.complete(gen, doc, attempt, domain.Verdict{}, domain.WrapError(domain.ErrTransport, "acquire analysis slot", err))
		return
	}

	if o.isStale(gen) {
		o.slots.Release(1)
		o.logger.Debug("analysis_skipped_stale", "generation", gen, "document_id", doc.ID)
		o.observer.StaleCompletion()
		return
	}

	start := time.Now()
	o.observer.StartAnalysis()
	verdict, err := o.analyze(doc)
	o.slots.Release(1)
	outcome := domain.PhaseSucceeded
	if err != nil {
		outcome = domain.PhaseFailed
	}
	o.observer.FinishAnalysis(outcome, time.Since(start))

	o.complete(gen, doc, attempt, verdict, err)
}

func (o *AnalysisOrchestrator) analyze(doc domain.Document) (verdict domain.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrTransport, "analyze", fmt.Errorf("analyzer panic: %v", r))
		}
	}()
	return o.analyzer.Analyze(o.baseCtx, doc)
}

func (o *AnalysisOrchestrator) complete(gen uint64, doc domain.Document, attempt int, verdict domain.Verdict, analyzeErr error) {
	event, ok := o.applyResult(gen, doc, attempt, verdict, analyzeErr)
	if !ok {
		o.logger.Debug("analysis_completion_discarded", "generation", gen, "document_id", doc.ID)
		o.observer.StaleCompletion()
		return
	}

	if analyzeErr != nil {
		o.logger.Warn("analysis_failed",
			"generation", gen,
			"document_id", doc.ID,
			"file_name", doc.Name,
			"attempt", attempt,
			"error", analyzeErr,
		)
	} else {
		o.logger.Info("analysis_succeeded",
			"generation", gen,
			"document_id", doc.ID,
			"file_name", doc.Name,
			"decision", event.Verdict.Decision,
			"issues", len(event.Verdict.Issues),
		)
		if !event.Verdict.Consistent() {
			o.logger.Warn("verdict_policy_mismatch", "document_id", doc.ID, "decision", event.Verdict.Decision, "issues", len(event.Verdict.Issues))
		}
		if o.history != nil {
			o.history.Append(o.baseCtx, domain.HistoryEntry{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				FileName:   doc.Name,
				Timestamp:  event.OccurredAt,
				Verdict:    cloneVerdict(*event.Verdict),
			})
		}
	}

	o.publish(event)
	o.settle(gen)
}

func (o *AnalysisOrchestrator) applyResult(gen uint64, doc domain.Document, attempt int, verdict domain.Verdict, analyzeErr error) (domain.AnalysisEvent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		return domain.AnalysisEvent{}, false
	}
	state, ok := o.states[doc.ID]
	if !ok || state.Phase != domain.PhaseAnalyzing || state.Attempts != attempt {
		return domain.AnalysisEvent{}, false
	}

	now := o.now()
	state.UpdatedAt = now
	if analyzeErr != nil {
		state.Phase = domain.PhaseFailed
		state.Error = domain.UserMessage(analyzeErr)
		state.Verdict = nil
	} else {
		v := cloneVerdict(verdict)
		state.Phase = domain.PhaseSucceeded
		state.Verdict = &v
		state.Error = ""
	}
	o.states[doc.ID] = state

	event := domain.AnalysisEvent{
		Generation: gen,
		DocumentID: doc.ID,
		FileName:   doc.Name,
		Phase:      state.Phase,
		Error:      state.Error,
		Attempt:    attempt,
		OccurredAt: now,
	}
	if state.Verdict != nil {
		v := cloneVerdict(*state.Verdict)
		event.Verdict = &v
	}
	return event, true
}

func (o *AnalysisOrchestrator) settle(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation || o.pending == 0 {
		return
	}
	o.pending--
	if o.pending == 0 {
		o.status = domain.BatchFinished
		close(o.settled)
		o.logger.Info("analysis_batch_finished", "generation", gen, "documents", len(o.order))
	}
}

func (o *AnalysisOrchestrator) publish(event domain.AnalysisEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishAnalysisEvent(o.baseCtx, event); err != nil {
		o.logger.Warn("analysis_event_publish_failed", "document_id", event.DocumentID, "error", err)
	}
}

func (o *AnalysisOrchestrator) isStale(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen != o.generation
}

func (o *AnalysisOrchestrator) closeSettledLocked() {
	if o.status == domain.BatchRunning && o.settled != nil {
		close(o.settled)
	}
}

func cloneVerdict(v domain.Verdict) domain.Verdict {
	issues := make([]string, len(v.Issues))
	copy(issues, v.Issues)
	v.Issues = issues
	return v
}

type noopObserver struct{}

func (noopObserver) StartAnalysis()                             {}
func (noopObserver) FinishAnalysis(domain.Phase, time.Duration) {}
func (noopObserver) StaleCompletion()                           {}
func (noopObserver) HistoryPersistFailed()                      {}
