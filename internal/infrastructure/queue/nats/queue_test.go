package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/resilience"
)

func TestEventRoundTrip(t *testing.T) {
	event := domain.AnalysisEvent{
		Generation: 3,
		DocumentID: "doc-1",
		FileName:   "a.pdf",
		Phase:      domain.PhaseSucceeded,
		Verdict:    &domain.Verdict{Decision: domain.DecisionRejected, Summary: "s", Issues: []string{"missing tax ID"}},
		Attempt:    2,
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	payload, err := encodeEvent(event)
	if err != nil {
		t.Fatalf("encodeEvent() error = %v", err)
	}
	decoded, err := decodeEvent(payload)
	if err != nil {
		t.Fatalf("decodeEvent() error = %v", err)
	}
	if decoded.DocumentID != event.DocumentID || decoded.Verdict == nil || decoded.Verdict.Issues[0] != "missing tax ID" {
		t.Fatalf("unexpected decoded event: %+v", decoded)
	}
}

func TestDecodeEventRejectsIncompletePayload(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"file_name":"a.pdf"}`)); err == nil {
		t.Fatalf("expected error for event without id and phase")
	}
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}

func TestClassifyNATSError(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
		record    bool
	}{
		{err: context.Canceled, retryable: false, record: false},
		{err: fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed), retryable: true, record: true},
		{err: errors.New("bad subject"), retryable: false, record: true},
	}
	for _, tc := range cases {
		got := classifyNATSError(tc.err)
		if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
			t.Fatalf("classifyNATSError(%v) = %+v", tc.err, got)
		}
	}
}

func TestWrapTransportKeepsKind(t *testing.T) {
	err := wrapTransport(resilience.ErrThrottled)
	if !domain.IsKind(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if wrapTransport(err) != err {
		t.Fatalf("expected already-wrapped error to pass through")
	}
}
