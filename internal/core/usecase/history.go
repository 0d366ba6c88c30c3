package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
)

const DefaultHistoryKey = "invoice-audit-history"

// HistoryStore is the most-recent-first log of verdicts. The in-memory list is authoritative;
// persistence failures are logged and never returned to callers.
type HistoryStore struct {
	kv       ports.KeyValueStore
	key      string
	logger   *slog.Logger
	observer ports.AnalysisObserver

	mu      sync.Mutex
	entries []domain.HistoryEntry
}

type HistoryStoreOptions struct {
	Key      string
	Logger   *slog.Logger
	Observer ports.AnalysisObserver
}

func NewHistoryStore(kv ports.KeyValueStore, options HistoryStoreOptions) *HistoryStore {
	key := options.Key
	if key == "" {
		key = DefaultHistoryKey
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		kv:       kv,
		key:      key,
		logger:   logger,
		observer: options.Observer,
	}
}

// Load replaces the in-memory list with the persisted one. A blob that cannot be decoded is
// treated as corrupt and deleted.
func (h *HistoryStore) Load(ctx context.Context) []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	raw, err := h.kv.Get(ctx, h.key)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			h.logger.Error("history_load_failed", "key", h.key, "error", err)
		}
		return h.snapshotLocked()
	}

	var entries []domain.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		h.logger.Warn("history_corrupt_discarded", "key", h.key, "error", err)
		if delErr := h.kv.Delete(ctx, h.key); delErr != nil {
			h.logger.Error("history_delete_failed", "key", h.key, "error", delErr)
		}
		return h.snapshotLocked()
	}
	h.entries = entries
	return h.snapshotLocked()
}

// Append records entry ahead of every entry stamped at or before it, so the list stays
// most-recent-first even when completions reach the store out of order.
func (h *HistoryStore) Append(ctx context.Context, entry domain.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	at := 0
	for at < len(h.entries) && h.entries[at].Timestamp.After(entry.Timestamp) {
		at++
	}
	h.entries = slices.Insert(h.entries, at, entry)
	if err := h.persistLocked(ctx); err != nil {
		h.logger.Error("history_persist_failed", "key", h.key, "file_name", entry.FileName, "error", err)
		if h.observer != nil {
			h.observer.HistoryPersistFailed()
		}
	}
}

func (h *HistoryStore) Clear(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	if err := h.kv.Delete(ctx, h.key); err != nil {
		h.logger.Error("history_clear_failed", "key", h.key, "error", err)
	}
}

func (h *HistoryStore) Entries() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *HistoryStore) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(h.entries)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, "marshal history", err)
	}
	if err := h.kv.Set(ctx, h.key, string(payload)); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return err
		}
		return domain.WrapError(domain.ErrPersistence, "write history", fmt.Errorf("key=%s: %w", h.key, err))
	}
	return nil
}

func (h *HistoryStore) snapshotLocked() []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
