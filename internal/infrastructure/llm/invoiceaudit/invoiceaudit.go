// Package invoiceaudit holds the provider-independent parts of an invoice audit call:
// the instruction, the response shape and verdict parsing.
package invoiceaudit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

const Instruction = `You are an accounts-payable auditor. Examine the attached invoice and decide whether it can be paid.
Check that it identifies the supplier and the customer, carries a tax ID, an invoice number and an issue date,
and that line items, subtotals, taxes and the grand total are arithmetically consistent.
Return decision APPROVED only if there are no issues; otherwise return REJECTED and list every issue found.
Summarize the invoice in one or two sentences.`

// ResponseShape describes the JSON object the model must return, for providers without schema support.
const ResponseShape = `Return a strict JSON object with keys:
decision (string, exactly "APPROVED" or "REJECTED"), summary (string), issues (array of strings, empty when approved).
No markdown, no extra keys.`

const (
	FieldDecision = "decision"
	FieldSummary  = "summary"
	FieldIssues   = "issues"
)

var DecisionValues = []string{string(domain.DecisionApproved), string(domain.DecisionRejected)}

type rawVerdict struct {
	Decision *string  `json:"decision"`
	Summary  string   `json:"summary"`
	Issues   []string `json:"issues"`
}

// ParseVerdict decodes a model reply into a verdict. Any reply that does not carry a valid decision is
// reported as domain.ErrResponseFormat.
func ParseVerdict(raw string) (domain.Verdict, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return domain.Verdict{}, domain.WrapError(domain.ErrResponseFormat, "parse verdict", errors.New("empty response"))
	}

	var parsed rawVerdict
	if err := json.Unmarshal([]byte(ExtractJSONObject(text)), &parsed); err != nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrResponseFormat, "parse verdict", err)
	}
	if parsed.Decision == nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrResponseFormat, "parse verdict", errors.New("decision missing"))
	}
	decision, err := domain.ParseDecision(*parsed.Decision)
	if err != nil {
		return domain.Verdict{}, domain.WrapError(domain.ErrResponseFormat, "parse verdict", err)
	}

	issues := make([]string, 0, len(parsed.Issues))
	for _, issue := range parsed.Issues {
		if trimmed := strings.TrimSpace(issue); trimmed != "" {
			issues = append(issues, trimmed)
		}
	}
	return domain.Verdict{
		Decision: decision,
		Summary:  strings.TrimSpace(parsed.Summary),
		Issues:   issues,
	}, nil
}

// ExtractJSONObject trims any prose or code fences around the outermost JSON object.
func ExtractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Prompt is the single-message form of the instruction for text-only providers.
func Prompt(fileName, documentText string, maxChars int) string {
	snippet := documentText
	if maxChars > 0 {
		snippet = cutAtRune(snippet, maxChars)
	}
	return fmt.Sprintf("%s\n\n%s\n\nInvoice file: %s\nInvoice text:\n%s", Instruction, ResponseShape, fileName, snippet)
}

// cutAtRune shortens s to at most n bytes without splitting a UTF-8 sequence.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
