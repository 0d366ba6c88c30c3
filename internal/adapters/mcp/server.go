package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
)

const serverName = "invoice-auditor"

// FileLoader reads local paths into incoming files.
type FileLoader func(ctx context.Context, paths []string) ([]domain.IncomingFile, error)

type Handlers struct {
	auditor ports.InvoiceAuditor
	load    FileLoader
	logger  *slog.Logger
}

func NewHandlers(auditor ports.InvoiceAuditor, load FileLoader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{auditor: auditor, load: load, logger: logger}
}

// NewServer registers the audit tools on a fresh MCP server.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("analyze_invoices",
		mcp.WithDescription("Audit local PDF invoices for completeness and return a verdict per file."),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.Description("PDF files or directories containing PDF files."),
			mcp.WithStringItems(),
			mcp.MinItems(1),
		),
	), h.AnalyzeInvoices)

	s.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List past audit verdicts, most recent first."),
		mcp.WithReadOnlyHintAnnotation(true),
	), h.GetHistory)

	s.AddTool(mcp.NewTool("clear_history",
		mcp.WithDescription("Delete all stored audit verdicts."),
		mcp.WithDestructiveHintAnnotation(true),
	), h.ClearHistory)

	return s
}

type analyzeResult struct {
	Snapshot domain.BatchSnapshot `json:"snapshot"`
}

func (h *Handlers) AnalyzeInvoices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := request.RequireStringSlice("paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(paths) == 0 {
		return mcp.NewToolResultError("at least one path is required"), nil
	}

	files, err := h.load(ctx, paths)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("load invoices", err), nil
	}

	snapshot, err := h.auditor.AnalyzeFiles(ctx, files, domain.AnalyzeOptions{})
	if err != nil {
		h.logger.Warn("mcp_analyze_failed", "paths", len(paths), "error", err)
		return mcp.NewToolResultErrorFromErr("analyze invoices", err), nil
	}

	h.logger.Info("mcp_analyze_completed",
		"files", len(snapshot.Files),
		"succeeded", snapshot.Succeeded,
		"failed", snapshot.Failed,
	)
	return mcp.NewToolResultJSON(analyzeResult{Snapshot: snapshot})
}

type historyResult struct {
	Entries []domain.HistoryEntry `json:"entries"`
}

func (h *Handlers) GetHistory(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := h.auditor.History()
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return mcp.NewToolResultJSON(historyResult{Entries: entries})
}

func (h *Handlers) ClearHistory(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed := len(h.auditor.History())
	h.auditor.ClearHistory(ctx)
	return mcp.NewToolResultText(fmt.Sprintf("cleared %d history entries", removed)), nil
}
