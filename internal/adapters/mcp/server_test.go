package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

type auditorFake struct {
	analyzed   []domain.IncomingFile
	analyzeErr error
	history    []domain.HistoryEntry
	cleared    int
}

func (f *auditorFake) AddFiles([]domain.IncomingFile) (int, []domain.Document) { return 0, nil }
func (f *auditorFake) RemoveFile(domain.DocumentID) bool                       { return false }
func (f *auditorFake) ClearSelection()                                         {}
func (f *auditorFake) Selection() []domain.Document                            { return nil }
func (f *auditorFake) StartAnalysis() (domain.BatchSnapshot, error)            { return domain.BatchSnapshot{}, nil }
func (f *auditorFake) Retry(domain.DocumentID) error                           { return nil }
func (f *auditorFake) Reset()                                                  {}
func (f *auditorFake) Snapshot() domain.BatchSnapshot                          { return domain.BatchSnapshot{} }
func (f *auditorFake) Wait(context.Context) error                              { return nil }

func (f *auditorFake) AnalyzeFiles(_ context.Context, files []domain.IncomingFile, _ domain.AnalyzeOptions) (domain.BatchSnapshot, error) {
	f.analyzed = files
	if f.analyzeErr != nil {
		return domain.BatchSnapshot{}, f.analyzeErr
	}
	return domain.BatchSnapshot{
		Generation: 1,
		Status:     domain.BatchFinished,
		Files: []domain.FileAnalysisState{{
			DocumentID: "1",
			FileName:   files[0].Name,
			Phase:      domain.PhaseSucceeded,
			Verdict:    &domain.Verdict{Decision: domain.DecisionApproved, Summary: "ok", Issues: []string{}},
		}},
		Succeeded: 1,
	}, nil
}

func (f *auditorFake) History() []domain.HistoryEntry { return f.history }

func (f *auditorFake) ClearHistory(context.Context) {
	f.cleared++
	f.history = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loaderFake(files []domain.IncomingFile, err error) FileLoader {
	return func(context.Context, []string) ([]domain.IncomingFile, error) {
		return files, err
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestAnalyzeInvoicesReturnsSnapshot(t *testing.T) {
	auditor := &auditorFake{}
	h := NewHandlers(auditor, loaderFake([]domain.IncomingFile{{Name: "a.pdf", MimeType: domain.MimeTypePDF}}, nil), discardLogger())

	result, err := h.AnalyzeInvoices(context.Background(), callRequest(map[string]any{"paths": []any{"/tmp/a.pdf"}}))
	if err != nil {
		t.Fatalf("AnalyzeInvoices() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var decoded analyzeResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded.Snapshot.Succeeded != 1 || decoded.Snapshot.Files[0].FileName != "a.pdf" {
		t.Fatalf("unexpected snapshot: %+v", decoded.Snapshot)
	}
	if len(auditor.analyzed) != 1 {
		t.Fatalf("expected loaded files to be analyzed")
	}
}

func TestAnalyzeInvoicesRequiresPaths(t *testing.T) {
	h := NewHandlers(&auditorFake{}, loaderFake(nil, nil), discardLogger())

	result, err := h.AnalyzeInvoices(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("AnalyzeInvoices() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing paths")
	}
}

func TestAnalyzeInvoicesSurfacesLoadAndAnalysisErrors(t *testing.T) {
	h := NewHandlers(&auditorFake{}, loaderFake(nil, errors.New("no such file")), discardLogger())
	result, _ := h.AnalyzeInvoices(context.Background(), callRequest(map[string]any{"paths": []any{"missing.pdf"}}))
	if !result.IsError {
		t.Fatalf("expected tool error for load failure")
	}

	auditor := &auditorFake{analyzeErr: domain.WrapError(domain.ErrInvalidInput, "start", errors.New("no documents"))}
	h = NewHandlers(auditor, loaderFake([]domain.IncomingFile{{Name: "notes.txt"}}, nil), discardLogger())
	result, _ = h.AnalyzeInvoices(context.Background(), callRequest(map[string]any{"paths": []any{"notes.txt"}}))
	if !result.IsError {
		t.Fatalf("expected tool error for analysis failure")
	}
}

func TestHistoryTools(t *testing.T) {
	auditor := &auditorFake{history: []domain.HistoryEntry{{ID: "h1", FileName: "a.pdf"}}}
	h := NewHandlers(auditor, loaderFake(nil, nil), discardLogger())

	result, err := h.GetHistory(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	var decoded historyResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &decoded); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(decoded.Entries) != 1 || decoded.Entries[0].FileName != "a.pdf" {
		t.Fatalf("unexpected history: %+v", decoded.Entries)
	}

	result, err = h.ClearHistory(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	if auditor.cleared != 1 || resultText(t, result) != "cleared 1 history entries" {
		t.Fatalf("unexpected clear result: cleared=%d text=%q", auditor.cleared, resultText(t, result))
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(NewHandlers(&auditorFake{}, loaderFake(nil, nil), discardLogger()), "test")
	tools := s.ListTools()
	for _, name := range []string{"analyze_invoices", "get_history", "clear_history"} {
		if _, ok := tools[name]; !ok {
			t.Fatalf("expected tool %q to be registered", name)
		}
	}
}
