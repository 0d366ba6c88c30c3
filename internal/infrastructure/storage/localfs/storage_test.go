package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

func TestStorageRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "history"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
	if err := store.Set(ctx, "history", `[{"file_name":"a.pdf"}]`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "history", `[]`); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, err := store.Get(ctx, "history")
	if err != nil || got != "[]" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	if err := store.Delete(ctx, "history"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "history"); err != nil {
		t.Fatalf("Delete() of missing key should be a no-op, got %v", err)
	}
	if _, err := store.Get(ctx, "history"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStorageSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.Set(context.Background(), "../escape/me", "x"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".._escape_me.json")); err != nil {
		t.Fatalf("expected sanitized file inside base dir: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected no leftover temp files, got %d entries", len(entries))
	}
}
