package usecase

import (
	"testing"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

func selectionDoc(id, name string, size int64) domain.Document {
	return domain.Document{ID: domain.DocumentID(id), Name: name, Size: size, MimeType: domain.MimeTypePDF}
}

func TestSelectionAddDeduplicatesByNameAndSize(t *testing.T) {
	store := NewSelectionStore()

	added := store.Add([]domain.Document{selectionDoc("1", "a.pdf", 10)})
	if added != 1 {
		t.Fatalf("expected 1 added, got %d", added)
	}
	added = store.Add([]domain.Document{selectionDoc("2", "a.pdf", 10)})
	if added != 0 {
		t.Fatalf("expected duplicate to be skipped, got %d added", added)
	}
	if store.Len() != 1 {
		t.Fatalf("expected selection size 1, got %d", store.Len())
	}
	if got := store.Items()[0].ID; got != "1" {
		t.Fatalf("expected original document to be kept, got %q", got)
	}
}

func TestSelectionAddSkipsDuplicatesWithinOneBatch(t *testing.T) {
	store := NewSelectionStore()

	added := store.Add([]domain.Document{
		selectionDoc("1", "a.pdf", 10),
		selectionDoc("2", "a.pdf", 10),
		selectionDoc("3", "b.pdf", 10),
	})
	if added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
}

func TestSelectionKeepsSameNameWithDifferentSize(t *testing.T) {
	store := NewSelectionStore()
	store.Add([]domain.Document{selectionDoc("1", "a.pdf", 10), selectionDoc("2", "a.pdf", 20)})

	if store.Len() != 2 {
		t.Fatalf("expected selection size 2, got %d", store.Len())
	}
}

func TestSelectionPreservesInsertionOrder(t *testing.T) {
	store := NewSelectionStore()
	store.Add([]domain.Document{selectionDoc("1", "c.pdf", 1), selectionDoc("2", "a.pdf", 1)})
	store.Add([]domain.Document{selectionDoc("3", "b.pdf", 1), selectionDoc("4", "c.pdf", 1)})

	items := store.Items()
	want := []string{"c.pdf", "a.pdf", "b.pdf"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Fatalf("item %d: expected %q, got %q", i, name, items[i].Name)
		}
	}
}

func TestSelectionRemoveAbsentIsNoop(t *testing.T) {
	store := NewSelectionStore()
	store.Add([]domain.Document{selectionDoc("1", "a.pdf", 10)})

	if store.RemoveOne(selectionDoc("x", "a.pdf", 11)) {
		t.Fatalf("expected remove of absent document to report false")
	}
	if store.Remove("missing") {
		t.Fatalf("expected remove of unknown id to report false")
	}
	if store.Len() != 1 {
		t.Fatalf("expected selection size unchanged, got %d", store.Len())
	}
}

func TestSelectionRemoveAndClear(t *testing.T) {
	store := NewSelectionStore()
	store.Add([]domain.Document{
		selectionDoc("1", "a.pdf", 10),
		selectionDoc("2", "b.pdf", 10),
		selectionDoc("3", "c.pdf", 10),
	})

	if !store.RemoveOne(selectionDoc("other-id", "b.pdf", 10)) {
		t.Fatalf("expected identity-based remove to succeed")
	}
	if !store.Remove("3") {
		t.Fatalf("expected id-based remove to succeed")
	}
	items := store.Items()
	if len(items) != 1 || items[0].Name != "a.pdf" {
		t.Fatalf("unexpected selection after removals: %+v", items)
	}

	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("expected empty selection after clear, got %d", store.Len())
	}
}

func TestSelectionItemsReturnsCopy(t *testing.T) {
	store := NewSelectionStore()
	store.Add([]domain.Document{selectionDoc("1", "a.pdf", 10)})

	items := store.Items()
	items[0].Name = "mutated.pdf"

	if store.Items()[0].Name != "a.pdf" {
		t.Fatalf("expected store to be isolated from caller mutation")
	}
}
