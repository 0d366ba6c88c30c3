package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/core/ports"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/llm/invoiceaudit"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/resilience"
)

const maxPromptChars = 24000

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.SingleAttemptConfig(true, 0, 0))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// Analyzer audits invoices with a local Ollama model. Ollama cannot read PDFs, so the text layer is
// extracted first and sent in the prompt.
type Analyzer struct {
	client    *Client
	extractor ports.TextExtractor
	logger    *slog.Logger
}

func NewAnalyzer(client *Client, extractor ports.TextExtractor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{client: client, extractor: extractor, logger: logger}
}

func (a *Analyzer) Analyze(ctx context.Context, doc domain.Document) (domain.Verdict, error) {
	if a.client.baseURL == "" || a.client.model == "" {
		return domain.Verdict{}, domain.WrapError(domain.ErrConfiguration, "ollama analyze", fmt.Errorf("ollama url and model must be set"))
	}

	text, err := a.extractor.Extract(ctx, doc)
	if err != nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrTransport, "ollama analyze", fmt.Errorf("extract pdf text: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		a.logger.Warn("ollama_pdf_without_text", "file_name", doc.Name)
	}

	var verdict domain.Verdict
	err = a.client.executor.Execute(ctx, "ollama_generate", func(callCtx context.Context) error {
		raw, err := a.client.generateJSON(callCtx, invoiceaudit.Prompt(doc.Name, text, maxPromptChars))
		if err != nil {
			return err
		}
		parsed, err := invoiceaudit.ParseVerdict(raw)
		if err != nil {
			return err
		}
		verdict = parsed
		return nil
	}, classifyOllamaError)
	if err != nil {
		return domain.Verdict{}, normalizeError(err)
	}
	return verdict, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": 0,
		},
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
