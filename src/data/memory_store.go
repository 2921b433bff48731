package data

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps history in process memory. Used when no database is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]VerificationRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]VerificationRecord), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, rec *VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rec
	if existing, ok := s.records[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	s.records[r.ID] = r
	rec.CreatedAt = r.CreatedAt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) List(_ context.Context, q HistoryQuery) ([]VerificationRecord, int64, error) {
	q = q.Normalize()
	search := strings.ToLower(strings.TrimSpace(q.Search))

	s.mu.RLock()
	matched := make([]VerificationRecord, 0, len(s.records))
	for _, r := range s.records {
		if q.RequestID != "" && r.RequestID != q.RequestID {
			continue
		}
		if q.Classification != "" && r.Classification != q.Classification {
			continue
		}
		if !q.From.IsZero() && r.ProcessedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.ProcessedAt.After(q.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.InputText), search) &&
			!strings.Contains(strings.ToLower(r.InputURL), search) {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ProcessedAt.Equal(matched[j].ProcessedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ProcessedAt.After(matched[j].ProcessedAt)
	})

	total := int64(len(matched))
	start := q.offset()
	if start >= len(matched) {
		return []VerificationRecord{}, total, nil
	}
	end := start + q.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := emptyStats()
	for _, r := range s.records {
		if r.Status != statusSuccess {
			st.Errors++
			continue
		}
		st.TotalVerifications++
		st.ByClassification[r.Classification]++
	}
	return st, nil
}
