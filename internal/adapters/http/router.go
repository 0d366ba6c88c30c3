package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/invoice-auditor/internal/observability/metrics"
)

const (
	defaultServiceName = "auditor-api"
	defaultMaxUploadMB = 32
)

type Options struct {
	ServiceName    string
	MaxUploadMB    int
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	Metrics        *metrics.HTTPServerMetrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

type Router struct {
	auditor ports.InvoiceAuditor
	opts    Options
	logger  *slog.Logger
}

func NewRouter(auditor ports.InvoiceAuditor, opts Options) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = defaultMaxUploadMB
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		auditor: auditor,
		opts:    opts,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", rt.opts.MetricsHandler)
	}

	mux.HandleFunc("POST /v1/selection", rt.addSelection)
	mux.HandleFunc("GET /v1/selection", rt.listSelection)
	mux.HandleFunc("DELETE /v1/selection", rt.clearSelection)
	mux.HandleFunc("DELETE /v1/selection/{id}", rt.removeSelection)

	mux.HandleFunc("POST /v1/analysis", rt.startAnalysis)
	mux.HandleFunc("GET /v1/analysis", rt.analysisSnapshot)
	mux.HandleFunc("POST /v1/analysis/reset", rt.resetAnalysis)
	mux.HandleFunc("POST /v1/analysis/{id}/retry", rt.retryAnalysis)

	mux.HandleFunc("GET /v1/history", rt.listHistory)
	mux.HandleFunc("DELETE /v1/history", rt.clearHistory)
	mux.HandleFunc("GET /v1/history/export", rt.exportHistory)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, 0, rt.onReject)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, rt.onReject)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) onReject(reason string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRejected(rt.opts.ServiceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type selectionResponse struct {
	Added     int               `json:"added"`
	Selection []domain.Document `json:"selection"`
}

func (rt *Router) addSelection(w http.ResponseWriter, r *http.Request) {
	limit := int64(rt.opts.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MB", rt.opts.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}

	files := make([]domain.IncomingFile, 0, len(headers))
	for _, header := range headers {
		content, err := readPart(header)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", header.Filename, err))
			return
		}
		files = append(files, domain.IncomingFile{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Content:  content,
		})
	}

	added, selection := rt.auditor.AddFiles(files)
	writeJSON(w, http.StatusOK, selectionResponse{Added: added, Selection: selection})
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (rt *Router) listSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, selectionResponse{Selection: rt.auditor.Selection()})
}

func (rt *Router) clearSelection(w http.ResponseWriter, _ *http.Request) {
	rt.auditor.ClearSelection()
	writeJSON(w, http.StatusOK, selectionResponse{Selection: rt.auditor.Selection()})
}

func (rt *Router) removeSelection(w http.ResponseWriter, r *http.Request) {
	id := domain.DocumentID(r.PathValue("id"))
	if !rt.auditor.RemoveFile(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("document %s is not selected", id))
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selection: rt.auditor.Selection()})
}

func (rt *Router) startAnalysis(w http.ResponseWriter, _ *http.Request) {
	snapshot, err := rt.auditor.StartAnalysis()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snapshot)
}

func (rt *Router) analysisSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.auditor.Snapshot())
}

func (rt *Router) retryAnalysis(w http.ResponseWriter, r *http.Request) {
	id := domain.DocumentID(r.PathValue("id"))
	if err := rt.auditor.Retry(id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rt.auditor.Snapshot())
}

func (rt *Router) resetAnalysis(w http.ResponseWriter, _ *http.Request) {
	rt.auditor.Reset()
	writeJSON(w, http.StatusOK, rt.auditor.Snapshot())
}

func (rt *Router) listHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entries": rt.auditor.History()})
}

func (rt *Router) clearHistory(w http.ResponseWriter, r *http.Request) {
	rt.auditor.ClearHistory(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) exportHistory(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := xlsx.WriteHistory(&buf, rt.auditor.History()); err != nil {
		rt.logger.Error("history_export_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history export failed")
		return
	}

	filename := fmt.Sprintf("invoice-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
