package invoiceaudit

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
)

func TestParseVerdictAcceptsFencedJSON(t *testing.T) {
	raw := "```json\n{\"decision\":\"rejected\",\"summary\":\" Office supplies \",\"issues\":[\"missing tax ID\",\"  \"]}\n```"

	verdict, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict() error = %v", err)
	}
	if verdict.Decision != domain.DecisionRejected {
		t.Fatalf("expected REJECTED, got %s", verdict.Decision)
	}
	if verdict.Summary != "Office supplies" {
		t.Fatalf("unexpected summary %q", verdict.Summary)
	}
	if len(verdict.Issues) != 1 || verdict.Issues[0] != "missing tax ID" {
		t.Fatalf("unexpected issues %v", verdict.Issues)
	}
}

func TestParseVerdictNormalizesMissingIssues(t *testing.T) {
	verdict, err := ParseVerdict(`{"decision":"APPROVED","summary":"ok"}`)
	if err != nil {
		t.Fatalf("ParseVerdict() error = %v", err)
	}
	if verdict.Issues == nil || len(verdict.Issues) != 0 {
		t.Fatalf("expected empty non-nil issues, got %#v", verdict.Issues)
	}
}

func TestParseVerdictRejectsMalformedReplies(t *testing.T) {
	cases := map[string]string{
		"empty":            "   ",
		"not json":         "the invoice looks fine",
		"missing decision": `{"summary":"ok","issues":[]}`,
		"unknown decision": `{"decision":"MAYBE","summary":"ok","issues":[]}`,
		"wrong type":       `{"decision":"APPROVED","issues":"none"}`,
	}
	for name, raw := range cases {
		_, err := ParseVerdict(raw)
		if !domain.IsKind(err, domain.ErrResponseFormat) {
			t.Fatalf("%s: expected ErrResponseFormat, got %v", name, err)
		}
	}
}

func TestPromptTruncatesDocumentText(t *testing.T) {
	prompt := Prompt("a.pdf", strings.Repeat("x", 50), 10)
	if !strings.Contains(prompt, "Invoice file: a.pdf") {
		t.Fatalf("expected file name in prompt")
	}
	if strings.Contains(prompt, strings.Repeat("x", 11)) {
		t.Fatalf("expected document text truncated")
	}
}

func TestPromptTruncationKeepsRunesWhole(t *testing.T) {
	prompt := Prompt("nf.pdf", "aaaaaaaaação", 10)
	if !utf8.ValidString(prompt) {
		t.Fatalf("expected valid UTF-8 prompt, got %q", prompt)
	}
	if !strings.HasSuffix(prompt, "aaaaaaaaa") {
		t.Fatalf("expected text cut before the split rune, got %q", prompt[len(prompt)-12:])
	}
}
