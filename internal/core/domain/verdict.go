package domain

import (
	"fmt"
	"strings"
	"time"
)

type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

func ParseDecision(raw string) (Decision, error) {
	switch Decision(strings.ToUpper(strings.TrimSpace(raw))) {
	case DecisionApproved:
		return DecisionApproved, nil
	case DecisionRejected:
		return DecisionRejected, nil
	default:
		return "", fmt.Errorf("unknown decision %q", raw)
	}
}

type Verdict struct {
	Decision Decision `json:"decision"`
	Summary  string   `json:"summary"`
	Issues   []string `json:"issues"`
}

// Consistent reports whether the verdict follows the audit policy:
// issues are empty exactly when the invoice is approved.
func (v Verdict) Consistent() bool {
	return (v.Decision == DecisionApproved) == (len(v.Issues) == 0)
}

type HistoryEntry struct {
	ID         string     `json:"id"`
	DocumentID DocumentID `json:"document_id,omitempty"`
	FileName   string     `json:"file_name"`
	Timestamp  time.Time  `json:"timestamp"`
	Verdict    Verdict    `json:"verdict"`
}
