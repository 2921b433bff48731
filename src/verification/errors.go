package verification

import (
	"fmt"
	"net/http"
)

// Code identifies why a verification did not produce a verdict.
type Code string

const (
	CodeTextTooLong  Code = "TEXT_TOO_LONG"
	CodeMalformedURL Code = "MALFORMED_URL"
	CodeMissingInput Code = "MISSING_INPUT"

	CodeProviderNotConfigured     Code = "PROVIDER_NOT_CONFIGURED"
	CodeScrapingFailed            Code = "SCRAPING_FAILED"
	CodeReasoningTimeout          Code = "REASONING_TIMEOUT"
	CodeReasoningFailed           Code = "REASONING_FAILED"
	CodeMalformedAnswer           Code = "MALFORMED_ANSWER"
	CodeUnparseableClassification Code = "UNPARSEABLE_CLASSIFICATION"
	CodeInternal                  Code = "INTERNAL_ERROR"
)

// ValidationError rejects a request before any collaborator is called.
type ValidationError struct {
	Code    Code
	Message string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

// VerificationError is any failure after validation: configuration, scraping, reasoning or parsing.
type VerificationError struct {
	Code    Code
	Message string
	Err     error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) StatusCode() int { return http.StatusInternalServerError }
