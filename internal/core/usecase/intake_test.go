package usecase

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

type pageCounterFake struct {
	pages int
	err   error
	calls int
}

func (f *pageCounterFake) CountPages([]byte) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.pages, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntakeDropsNonPDFFiles(t *testing.T) {
	intake := NewIntake(nil, discardLogger())

	docs := intake.Accept([]domain.IncomingFile{
		{Name: "a.pdf", MimeType: "application/pdf", Content: []byte("%PDF-a")},
		{Name: "notes.txt", MimeType: "text/plain", Content: []byte("hello")},
		{Name: "b.pdf", MimeType: "Application/PDF; charset=binary", Content: []byte("%PDF-b")},
		{Name: "unknown.bin", MimeType: "", Content: []byte("??")},
		{Name: "scan.png", MimeType: "image/png", Content: []byte{0x89}},
	})

	if len(docs) != 2 {
		t.Fatalf("expected 2 accepted documents, got %d", len(docs))
	}
	if docs[0].Name != "a.pdf" || docs[1].Name != "b.pdf" {
		t.Fatalf("unexpected accepted documents: %q, %q", docs[0].Name, docs[1].Name)
	}
}

func TestIntakePopulatesDocumentMetadata(t *testing.T) {
	pages := &pageCounterFake{pages: 3}
	intake := NewIntake(pages, discardLogger())

	docs := intake.Accept([]domain.IncomingFile{
		{Name: "a.pdf", MimeType: "application/pdf", Content: []byte("abc")},
		{Name: "b.pdf", MimeType: "application/pdf", Content: []byte("abc")},
	})
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	doc := docs[0]
	if doc.ID == "" || doc.ID == docs[1].ID {
		t.Fatalf("expected unique generated ids, got %q and %q", doc.ID, docs[1].ID)
	}
	if doc.Size != 3 {
		t.Fatalf("expected size 3, got %d", doc.Size)
	}
	if doc.MimeType != domain.MimeTypePDF {
		t.Fatalf("expected normalized mime type, got %q", doc.MimeType)
	}
	if doc.SHA256 != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected sha256: %s", doc.SHA256)
	}
	if doc.Pages != 3 {
		t.Fatalf("expected 3 pages, got %d", doc.Pages)
	}
	if pages.calls != 2 {
		t.Fatalf("expected page counter to be called per document, got %d", pages.calls)
	}
}

func TestIntakeToleratesPageCountFailure(t *testing.T) {
	intake := NewIntake(&pageCounterFake{err: errors.New("malformed xref")}, discardLogger())

	docs := intake.Accept([]domain.IncomingFile{
		{Name: "broken.pdf", MimeType: "application/pdf", Content: []byte("not really a pdf")},
	})
	if len(docs) != 1 {
		t.Fatalf("expected document to be accepted despite page count failure")
	}
	if docs[0].Pages != 0 {
		t.Fatalf("expected unknown page count, got %d", docs[0].Pages)
	}
}
