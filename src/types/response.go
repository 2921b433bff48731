package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ResponseStatus tags which variant an envelope holds.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// VerificationResponse is the envelope returned for every verification. A success
// carries a result and no error; an error carries a message, a code and an HTTP status
// and no result. Build it with NewSuccessResponse or NewErrorResponse only.
type VerificationResponse struct {
	status      ResponseStatus
	input       VerificationRequest
	result      *VerificationResult
	failure     *failure
	metadata    Metadata
	processedAt time.Time
}

type failure struct {
	message    string
	code       string
	statusCode int
}

var errZeroEnvelope = errors.New("types: envelope was not built with a constructor")

// NewSuccessResponse wraps a result.
func NewSuccessResponse(input VerificationRequest, result *VerificationResult, metadata Metadata) (*VerificationResponse, error) {
	if result == nil {
		return nil, errors.New("types: success envelope requires a result")
	}
	if !result.Classification.Valid() {
		return nil, unknownClassification(result.Classification)
	}
	return &VerificationResponse{
		status:      StatusSuccess,
		input:       input,
		result:      result,
		metadata:    normalizeMetadata(metadata),
		processedAt: now(),
	}, nil
}

// NewErrorResponse wraps a failure. An empty message or a non-error status code is rejected.
func NewErrorResponse(input VerificationRequest, message, code string, statusCode int, metadata Metadata) (*VerificationResponse, error) {
	if message == "" {
		return nil, errors.New("types: error envelope requires a message")
	}
	if statusCode < 400 || statusCode > 599 {
		return nil, fmt.Errorf("types: error envelope status code %d is not an error status", statusCode)
	}
	return &VerificationResponse{
		status:      StatusError,
		input:       input,
		failure:     &failure{message: message, code: code, statusCode: statusCode},
		metadata:    normalizeMetadata(metadata),
		processedAt: now(),
	}, nil
}

func now() time.Time { return time.Now().UTC().Round(0) }

func normalizeMetadata(m Metadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}

func (r *VerificationResponse) Status() ResponseStatus { return r.status }

func (r *VerificationResponse) Input() VerificationRequest { return r.input }

func (r *VerificationResponse) Result() (*VerificationResult, bool) {
	return r.result, r.status == StatusSuccess && r.result != nil
}

func (r *VerificationResponse) ErrorMessage() string {
	if r.failure == nil {
		return ""
	}
	return r.failure.message
}

func (r *VerificationResponse) ErrorCode() string {
	if r.failure == nil {
		return ""
	}
	return r.failure.code
}

// StatusCode is the HTTP status the envelope should be served with.
func (r *VerificationResponse) StatusCode() int {
	if r.failure == nil {
		return 200
	}
	return r.failure.statusCode
}

func (r *VerificationResponse) Metadata() Metadata { return r.metadata }

func (r *VerificationResponse) ProcessedAt() time.Time { return r.processedAt }

type responseJSON struct {
	Status       ResponseStatus      `json:"status"`
	Input        VerificationRequest `json:"input_original"`
	Result       *VerificationResult `json:"result,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	ErrorCode    string              `json:"error_code,omitempty"`
	StatusCode   int                 `json:"status_code,omitempty"`
	Metadata     Metadata            `json:"metadata"`
	ProcessedAt  string              `json:"processed_at"`
}

func (r VerificationResponse) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		Status:      r.status,
		Input:       r.input,
		Metadata:    normalizeMetadata(r.metadata),
		ProcessedAt: r.processedAt.Format(time.RFC3339Nano),
	}
	switch r.status {
	case StatusSuccess:
		if r.result == nil {
			return nil, errZeroEnvelope
		}
		out.Result = r.result
	case StatusError:
		if r.failure == nil {
			return nil, errZeroEnvelope
		}
		out.ErrorMessage = r.failure.message
		out.ErrorCode = r.failure.code
		out.StatusCode = r.failure.statusCode
	default:
		return nil, errZeroEnvelope
	}
	return json.Marshal(out)
}

// UnmarshalJSON rejects payloads that mix or omit the variant fields.
func (r *VerificationResponse) UnmarshalJSON(b []byte) error {
	var raw responseJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	processedAt, err := time.Parse(time.RFC3339Nano, raw.ProcessedAt)
	if err != nil {
		return fmt.Errorf("types: processed_at: %w", err)
	}
	out := VerificationResponse{
		status:      raw.Status,
		input:       raw.Input,
		metadata:    normalizeMetadata(raw.Metadata),
		processedAt: processedAt.UTC(),
	}
	switch raw.Status {
	case StatusSuccess:
		if raw.Result == nil {
			return errors.New("types: success envelope without result")
		}
		if raw.ErrorMessage != "" || raw.ErrorCode != "" || raw.StatusCode != 0 {
			return errors.New("types: success envelope carries error fields")
		}
		out.result = raw.Result
	case StatusError:
		if raw.Result != nil {
			return errors.New("types: error envelope carries a result")
		}
		if raw.ErrorMessage == "" {
			return errors.New("types: error envelope without error_message")
		}
		code := raw.StatusCode
		if code == 0 {
			code = 500
		}
		out.failure = &failure{message: raw.ErrorMessage, code: raw.ErrorCode, statusCode: code}
	default:
		return fmt.Errorf("types: unknown envelope status %q", raw.Status)
	}
	*r = out
	return nil
}
