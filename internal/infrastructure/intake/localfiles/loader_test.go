package localfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDeclaresTypesAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "a.PDF")
	txtPath := filepath.Join(dir, "notes.txt")
	sniffPath := filepath.Join(dir, "scan")
	writeFile(t, pdfPath, "%PDF-1.4 a")
	writeFile(t, txtPath, "hello")
	writeFile(t, sniffPath, "%PDF-1.7 sniffed")

	files, err := Load(context.Background(), []string{pdfPath, txtPath, sniffPath})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	if files[0].Name != "a.PDF" || files[0].MimeType != domain.MimeTypePDF || string(files[0].Content) != "%PDF-1.4 a" {
		t.Fatalf("unexpected first file: %+v", files[0])
	}
	if domain.IsPDFMimeType(files[1].MimeType) {
		t.Fatalf("expected text file not to be declared as pdf, got %q", files[1].MimeType)
	}
	if !domain.IsPDFMimeType(files[2].MimeType) {
		t.Fatalf("expected sniffed pdf, got %q", files[2].MimeType)
	}
}

func TestLoadExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "%PDF b")
	writeFile(t, filepath.Join(dir, "a.pdf"), "%PDF a")
	writeFile(t, filepath.Join(dir, "readme.md"), "#")

	files, err := Load(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 2 || files[0].Name != "a.pdf" || files[1].Name != "b.pdf" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestLoadMissingPathIsInvalidInput(t *testing.T) {
	_, err := Load(context.Background(), []string{filepath.Join(t.TempDir(), "missing.pdf")})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
