package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/kirillkom/invoice-auditor/internal/core/domain"
	"github.com/kirillkom/invoice-auditor/internal/infrastructure/resilience"
)

func classifyGeminiError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if domain.IsKind(err, domain.ErrResponseFormat) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: false}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if isRetryableHTTPStatus(apiErr.Code) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

// normalizeError maps every failure to one of the analyzer error kinds.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrResponseFormat) || domain.IsKind(err, domain.ErrConfiguration) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTransport, "gemini analyze", fmt.Errorf("service temporarily disabled after repeated failures: %w", err))
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return domain.WrapError(domain.ErrConfiguration, "gemini analyze", describeAPIError(apiErr))
		}
		return domain.WrapError(domain.ErrTransport, "gemini analyze", describeAPIError(apiErr))
	}
	return domain.WrapError(domain.ErrTransport, "gemini analyze", err)
}

func describeAPIError(apiErr genai.APIError) error {
	if apiErr.Message == "" {
		return fmt.Errorf("gemini status %d %s", apiErr.Code, apiErr.Status)
	}
	return fmt.Errorf("gemini status %d: %s", apiErr.Code, apiErr.Message)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
