package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

type memoryKVFake struct {
	mu        sync.Mutex
	data      map[string]string
	setErr    error
	deleteErr error
	deletes   int
}

func newMemoryKVFake() *memoryKVFake {
	return &memoryKVFake{data: make(map[string]string)}
}

func (f *memoryKVFake) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return "", domain.WrapError(domain.ErrNotFound, "get", errors.New(key))
	}
	return value, nil
}

func (f *memoryKVFake) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func (f *memoryKVFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, key)
	return nil
}

type observerFake struct {
	mu             sync.Mutex
	started        int
	finished       map[domain.Phase]int
	stale          int
	persistFailure int
}

func newObserverFake() *observerFake {
	return &observerFake{finished: make(map[domain.Phase]int)}
}

func (f *observerFake) StartAnalysis() {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *observerFake) FinishAnalysis(outcome domain.Phase, _ time.Duration) {
	f.mu.Lock()
	f.finished[outcome]++
	f.mu.Unlock()
}

func (f *observerFake) StaleCompletion() {
	f.mu.Lock()
	f.stale++
	f.mu.Unlock()
}

func (f *observerFake) HistoryPersistFailed() {
	f.mu.Lock()
	f.persistFailure++
	f.mu.Unlock()
}

func (f *observerFake) staleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale
}

func historyEntry(name string, decision domain.Decision) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        "entry-" + name,
		FileName:  name,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Verdict:   domain.Verdict{Decision: decision, Summary: "ok", Issues: []string{}},
	}
}

func TestHistoryAppendPrependsAndPersists(t *testing.T) {
	kv := newMemoryKVFake()
	store := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger()})

	store.Append(context.Background(), historyEntry("a.pdf", domain.DecisionApproved))
	store.Append(context.Background(), historyEntry("b.pdf", domain.DecisionRejected))

	entries := store.Entries()
	if len(entries) != 2 || entries[0].FileName != "b.pdf" || entries[1].FileName != "a.pdf" {
		t.Fatalf("expected most recent first, got %+v", entries)
	}
	if _, ok := kv.data[DefaultHistoryKey]; !ok {
		t.Fatalf("expected history persisted under %q", DefaultHistoryKey)
	}

	reloaded := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger()}).Load(context.Background())
	if len(reloaded) != 2 || reloaded[0].FileName != "b.pdf" {
		t.Fatalf("expected reload to keep order, got %+v", reloaded)
	}
}

func TestHistoryClearThenLoadIsEmpty(t *testing.T) {
	kv := newMemoryKVFake()
	store := NewHistoryStore(kv, HistoryStoreOptions{Key: "custom", Logger: discardLogger()})
	store.Append(context.Background(), historyEntry("a.pdf", domain.DecisionApproved))

	store.Clear(context.Background())
	if len(store.Entries()) != 0 {
		t.Fatalf("expected in-memory history cleared")
	}
	if got := store.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty history after reload, got %d entries", len(got))
	}
}

func TestHistoryLoadMissingKeyIsEmpty(t *testing.T) {
	kv := newMemoryKVFake()
	store := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger()})

	if got := store.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(got))
	}
	if kv.deletes != 0 {
		t.Fatalf("expected no delete for missing key")
	}
}

func TestHistoryLoadDiscardsCorruptBlob(t *testing.T) {
	kv := newMemoryKVFake()
	kv.data[DefaultHistoryKey] = "{not json"
	store := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger()})

	if got := store.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty history for corrupt blob, got %d entries", len(got))
	}
	if _, ok := kv.data[DefaultHistoryKey]; ok {
		t.Fatalf("expected corrupt blob to be deleted")
	}
}

func TestHistoryPersistFailureIsAbsorbed(t *testing.T) {
	kv := newMemoryKVFake()
	kv.setErr = errors.New("disk full")
	observer := newObserverFake()
	store := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger(), Observer: observer})

	store.Append(context.Background(), historyEntry("a.pdf", domain.DecisionApproved))

	if len(store.Entries()) != 1 {
		t.Fatalf("expected in-memory entry despite persistence failure")
	}
	if observer.persistFailure != 1 {
		t.Fatalf("expected persistence failure to be observed once, got %d", observer.persistFailure)
	}
}

func TestHistoryClearIgnoresDeleteFailure(t *testing.T) {
	kv := newMemoryKVFake()
	kv.deleteErr = errors.New("read-only")
	store := NewHistoryStore(kv, HistoryStoreOptions{Logger: discardLogger()})
	store.Append(context.Background(), historyEntry("a.pdf", domain.DecisionApproved))

	store.Clear(context.Background())
	if len(store.Entries()) != 0 {
		t.Fatalf("expected in-memory history cleared even when delete fails")
	}
}

func TestHistoryAppendOrdersByTimestamp(t *testing.T) {
	store := NewHistoryStore(newMemoryKVFake(), HistoryStoreOptions{Logger: discardLogger()})
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	later := historyEntry("later.pdf", domain.DecisionApproved)
	later.Timestamp = base.Add(2 * time.Second)
	earlier := historyEntry("earlier.pdf", domain.DecisionApproved)
	earlier.Timestamp = base.Add(time.Second)
	oldest := historyEntry("oldest.pdf", domain.DecisionRejected)
	oldest.Timestamp = base

	store.Append(context.Background(), oldest)
	store.Append(context.Background(), later)
	store.Append(context.Background(), earlier)

	entries := store.Entries()
	want := []string{"later.pdf", "earlier.pdf", "oldest.pdf"}
	for i, name := range want {
		if entries[i].FileName != name {
			t.Fatalf("entry %d: expected %s, got %s", i, name, entries[i].FileName)
		}
	}
}
