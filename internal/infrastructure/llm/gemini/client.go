package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/llm/invoiceaudit"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey    string
	Model     string
	UseVertex bool
	Project   string
	Location  string
	// BaseURL overrides the service endpoint.
	BaseURL string
	Timeout time.Duration
}

// Analyzer audits invoices by sending the PDF bytes inline to Gemini with a JSON response schema.
type Analyzer struct {
	client    *genai.Client
	configErr error
	model     string
	executor  *resilience.Executor
	logger    *slog.Logger
}

// New builds the analyzer. A missing credential does not fail construction; every Analyze call
// then reports domain.ErrConfiguration.
func New(ctx context.Context, cfg Config, executor *resilience.Executor, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.SingleAttemptConfig(true, 0, 0), resilience.WithLogger(logger))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	a := &Analyzer{model: model, executor: executor, logger: logger}

	client, err := newClient(ctx, cfg)
	if err != nil {
		a.configErr = domain.WrapError(domain.ErrConfiguration, "gemini client", err)
		logger.Warn("gemini_not_configured", "error", err)
		return a
	}
	a.client = client
	return a
}

func newClient(ctx context.Context, cfg Config) (*genai.Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	clientCfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(cfg.BaseURL),
		},
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPOptions.Timeout = genai.Ptr(cfg.Timeout)
	}

	if cfg.UseVertex {
		clientCfg.Backend = genai.BackendVertexAI
		if apiKey != "" {
			clientCfg.APIKey = apiKey
		} else {
			if cfg.Project == "" {
				return nil, errors.New("vertex ai requires a project or an api key")
			}
			clientCfg.Project = cfg.Project
			clientCfg.Location = cfg.Location
		}
	} else {
		if apiKey == "" {
			return nil, errors.New("no API key available")
		}
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = apiKey
	}

	return genai.NewClient(ctx, clientCfg)
}

func (a *Analyzer) Analyze(ctx context.Context, doc domain.Document) (domain.Verdict, error) {
	if a.configErr != nil {
		return domain.Verdict{}, a.configErr
	}
	if len(doc.Content) == 0 {
		return domain.Verdict{}, domain.WrapError(domain.ErrTransport, "gemini analyze", fmt.Errorf("document %s has no content", doc.Name))
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(doc.Content, mimeTypeOf(doc)),
			genai.NewPartFromText("Audit the attached invoice: " + doc.Name),
		}, genai.RoleUser),
	}

	var verdict domain.Verdict
	err := a.executor.Execute(ctx, "gemini_generate_content", func(callCtx context.Context) error {
		resp, err := a.client.Models.GenerateContent(callCtx, a.model, contents, generateConfig())
		if err != nil {
			return err
		}
		parsed, err := invoiceaudit.ParseVerdict(resp.Text())
		if err != nil {
			return err
		}
		verdict = parsed
		return nil
	}, classifyGeminiError)
	if err != nil {
		return domain.Verdict{}, normalizeError(err)
	}

	a.logger.Debug("gemini_verdict", "file_name", doc.Name, "model", a.model, "decision", verdict.Decision)
	return verdict, nil
}

func generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(invoiceaudit.Instruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    verdictSchema(),
	}
}

func verdictSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			invoiceaudit.FieldDecision: {
				Type:        genai.TypeString,
				Enum:        invoiceaudit.DecisionValues,
				Description: "APPROVED when the invoice has no issues, otherwise REJECTED.",
			},
			invoiceaudit.FieldSummary: {
				Type:        genai.TypeString,
				Description: "One or two sentence summary of the invoice.",
			},
			invoiceaudit.FieldIssues: {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Every problem found; empty when approved.",
			},
		},
		Required:         []string{invoiceaudit.FieldDecision, invoiceaudit.FieldSummary, invoiceaudit.FieldIssues},
		PropertyOrdering: []string{invoiceaudit.FieldDecision, invoiceaudit.FieldSummary, invoiceaudit.FieldIssues},
	}
}

func mimeTypeOf(doc domain.Document) string {
	if doc.MimeType != "" {
		return doc.MimeType
	}
	return domain.MimeTypePDF
}
