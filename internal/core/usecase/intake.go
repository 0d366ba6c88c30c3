package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
)

// Intake turns candidate files into documents. Anything not declared as a PDF is dropped silently.
type Intake struct {
	pages  ports.PageCounter
	logger *slog.Logger
}

func NewIntake(pages ports.PageCounter, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{pages: pages, logger: logger}
}

func (in *Intake) Accept(files []domain.IncomingFile) []domain.Document {
	docs := make([]domain.Document, 0, len(files))
	for _, file := range files {
		if !domain.IsPDFMimeType(file.MimeType) {
			in.logger.Debug("intake_dropped_non_pdf", "file_name", file.Name, "mime_type", file.MimeType)
			continue
		}
		docs = append(docs, in.newDocument(file))
	}
	return docs
}

func (in *Intake) newDocument(file domain.IncomingFile) domain.Document {
	sum := sha256.Sum256(file.Content)
	doc := domain.Document{
		ID:       domain.DocumentID(uuid.NewString()),
		Name:     file.Name,
		Size:     int64(len(file.Content)),
		MimeType: domain.MimeTypePDF,
		SHA256:   hex.EncodeToString(sum[:]),
		Content:  file.Content,
	}

	if in.pages != nil {
		pages, err := in.pages.CountPages(file.Content)
		if err != nil {
			in.logger.Warn("intake_page_count_failed", "file_name", file.Name, "error", err)
		} else {
			doc.Pages = pages
		}
	}
	return doc
}
