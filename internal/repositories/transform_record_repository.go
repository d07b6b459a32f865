package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"livepage/internal/models"
)

type TransformRecordRepository interface {
	Create(ctx context.Context, record *models.TransformRecord) error
	ListByPage(ctx context.Context, pageName string, limit int) ([]models.TransformRecord, error)
	DeleteByPage(ctx context.Context, pageName string) error
}

type transformRecordRepository struct {
	db *gorm.DB
}

func NewTransformRecordRepository(db *gorm.DB) TransformRecordRepository {
	return &transformRecordRepository{db: db}
}

func (r *transformRecordRepository) Create(ctx context.Context, record *models.TransformRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("transform record id is required")
	}
	if record.PageName == "" {
		return fmt.Errorf("page name is required")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByPage returns the newest records first; limit <= 0 means all.
func (r *transformRecordRepository) ListByPage(ctx context.Context, pageName string, limit int) ([]models.TransformRecord, error) {
	var records []models.TransformRecord
	q := r.db.WithContext(ctx).Where("page_name = ?", pageName).Order("started_at desc").Order("id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *transformRecordRepository) DeleteByPage(ctx context.Context, pageName string) error {
	return r.db.WithContext(ctx).Where("page_name = ?", pageName).Delete(&models.TransformRecord{}).Error
}
