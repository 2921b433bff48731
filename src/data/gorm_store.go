package data

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/stake-plus/validai/src/types"
)

var statusSuccess = string(types.StatusSuccess)

// GormStore keeps history in the verification_records table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the history table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&VerificationRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, rec *VerificationRecord) error {
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) List(ctx context.Context, q HistoryQuery) ([]VerificationRecord, int64, error) {
	q = q.Normalize()

	var total int64
	if err := s.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	records := []VerificationRecord{}
	err := s.filtered(ctx, q).
		Order("processed_at desc").Order("id").
		Offset(q.offset()).Limit(q.PageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *GormStore) filtered(ctx context.Context, q HistoryQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&VerificationRecord{})
	if q.RequestID != "" {
		tx = tx.Where("request_id = ?", q.RequestID)
	}
	if q.Classification != "" {
		tx = tx.Where("classification = ?", q.Classification)
	}
	if !q.From.IsZero() {
		tx = tx.Where("processed_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		tx = tx.Where("processed_at <= ?", q.To)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + escapeLike(search) + "%"
		tx = tx.Where("input_text LIKE ? OR input_url LIKE ?", like, like)
	}
	return tx
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&VerificationRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status         string
		Classification string
		N              int64
	}
	err := s.db.WithContext(ctx).Model(&VerificationRecord{}).
		Select("status, classification, count(*) as n").
		Group("status, classification").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, err
	}
	st := emptyStats()
	for _, r := range rows {
		if r.Status != statusSuccess {
			st.Errors += r.N
			continue
		}
		st.TotalVerifications += r.N
		st.ByClassification[r.Classification] += r.N
	}
	return st, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
