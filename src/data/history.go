package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stake-plus/validai/src/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrNotFound is returned when a history record does not exist.
var ErrNotFound = errors.New("data: record not found")

// VerificationRecord is one stored verification, summarised for filtering, with the full envelope.
type VerificationRecord struct {
	ID                   string          `gorm:"primaryKey;size:36" json:"id"`
	RequestID            string          `gorm:"size:64;index" json:"request_id"`
	InputType            string          `gorm:"size:16" json:"input_type"`
	InputText            string          `gorm:"type:text" json:"input_text,omitempty"`
	InputURL             string          `gorm:"size:2048" json:"input_url,omitempty"`
	ContentHash          string          `gorm:"size:16;index" json:"content_hash,omitempty"`
	Status               string          `gorm:"size:16;index" json:"status"`
	Classification       string          `gorm:"size:32;index" json:"classification,omitempty"`
	ConfidencePercentage int             `json:"confidence_percentage"`
	ErrorCode            string          `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage         string          `gorm:"type:text" json:"error_message,omitempty"`
	Envelope             json.RawMessage `gorm:"type:json" json:"envelope"`
	ProcessedAt          time.Time       `gorm:"index" json:"processed_at"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (VerificationRecord) TableName() string { return "verification_records" }

// NewRecord flattens an envelope into a record with a fresh id. The caller's request id is
// kept only as a lookup column, so a repeated header never replaces an earlier record.
func NewRecord(resp *types.VerificationResponse) (*VerificationRecord, error) {
	if resp == nil {
		return nil, errors.New("data: nil envelope")
	}
	envelope, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("data: encode envelope: %w", err)
	}
	meta := resp.Metadata()
	requestID, _ := meta["request_id"].AsString()
	hash, _ := meta["content_fingerprint"].AsString()

	input := resp.Input()
	rec := &VerificationRecord{
		ID:           uuid.NewString(),
		RequestID:    requestID,
		InputType:    input.InputType(),
		InputText:    input.Text,
		InputURL:     input.URL,
		ContentHash:  hash,
		Status:       string(resp.Status()),
		ErrorCode:    resp.ErrorCode(),
		ErrorMessage: resp.ErrorMessage(),
		Envelope:     envelope,
		ProcessedAt:  resp.ProcessedAt(),
	}
	if result, ok := resp.Result(); ok {
		rec.Classification = string(result.Classification)
		rec.ConfidencePercentage = result.ConfidencePercentage()
	}
	return rec, nil
}

// HistoryQuery filters and pages the history. Zero values mean no filter.
type HistoryQuery struct {
	Page           int
	PageSize       int
	Search         string
	RequestID      string
	Classification string
	From           time.Time
	To             time.Time
}

// Normalize applies the paging defaults.
func (q HistoryQuery) Normalize() HistoryQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q
}

func (q HistoryQuery) offset() int { return (q.Page - 1) * q.PageSize }

// Stats counts successful verifications per classification, plus failures.
type Stats struct {
	TotalVerifications int64            `json:"total_verifications"`
	ByClassification   map[string]int64 `json:"by_classification"`
	Errors             int64            `json:"errors"`
}

func emptyStats() Stats {
	s := Stats{ByClassification: make(map[string]int64, len(types.Classifications))}
	for _, c := range types.Classifications {
		s.ByClassification[string(c)] = 0
	}
	return s
}

// Store persists verification history.
type Store interface {
	Save(ctx context.Context, rec *VerificationRecord) error
	Get(ctx context.Context, id string) (*VerificationRecord, error)
	List(ctx context.Context, q HistoryQuery) ([]VerificationRecord, int64, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}

// Publisher announces stored records to other services.
type Publisher interface {
	Publish(ctx context.Context, rec *VerificationRecord) error
}

// HistoryRecorder saves every envelope and then announces it. Publishing is best effort.
type HistoryRecorder struct {
	store  Store
	events Publisher
}

// NewHistoryRecorder builds a recorder; events may be nil.
func NewHistoryRecorder(store Store, events Publisher) *HistoryRecorder {
	return &HistoryRecorder{store: store, events: events}
}

func (h *HistoryRecorder) Record(ctx context.Context, resp *types.VerificationResponse) error {
	rec, err := NewRecord(resp)
	if err != nil {
		return err
	}
	if err := h.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("data: save %s: %w", rec.ID, err)
	}
	if h.events != nil {
		if err := h.events.Publish(ctx, rec); err != nil {
			log.Printf("data: publish %s: %v", rec.ID, err)
		}
	}
	return nil
}
