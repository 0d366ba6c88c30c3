package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration  = errors.New("analysis service not configured")
	ErrResponseFormat = errors.New("malformed analysis response")
	ErrTransport      = errors.New("analysis service unavailable")
	ErrPersistence    = errors.New("persistence failure")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrNotRetryable   = errors.New("document is not in failed state")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage renders an analysis failure as the text shown next to the failed file.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case IsKind(err, ErrConfiguration):
		return "The analysis service is not configured: no API credential is available."
	case IsKind(err, ErrResponseFormat):
		return "The analysis service returned a response that could not be read. Please retry."
	case IsKind(err, ErrTransport):
		return "Could not reach the analysis service: " + rootCause(err).Error()
	default:
		return "Analysis failed: " + err.Error()
	}
}

func rootCause(err error) error {
	for {
		var next error
		switch wrapped := err.(type) {
		case interface{ Unwrap() []error }:
			errs := wrapped.Unwrap()
			if len(errs) == 0 {
				return err
			}
			next = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next = wrapped.Unwrap()
		default:
			return err
		}
		if next == nil {
			return err
		}
		err = next
	}
}
