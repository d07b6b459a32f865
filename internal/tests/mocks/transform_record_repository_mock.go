package mocks

import (
	"context"

	"livepage/internal/models"
)

type TransformRecordRepositoryMock struct {
	CreateFunc       func(ctx context.Context, record *models.TransformRecord) error
	ListByPageFunc   func(ctx context.Context, pageName string, limit int) ([]models.TransformRecord, error)
	DeleteByPageFunc func(ctx context.Context, pageName string) error
}

func (m *TransformRecordRepositoryMock) Create(ctx context.Context, record *models.TransformRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, record)
	}
	return nil
}

func (m *TransformRecordRepositoryMock) ListByPage(ctx context.Context, pageName string, limit int) ([]models.TransformRecord, error) {
	if m.ListByPageFunc != nil {
		return m.ListByPageFunc(ctx, pageName, limit)
	}
	return []models.TransformRecord{}, nil
}

func (m *TransformRecordRepositoryMock) DeleteByPage(ctx context.Context, pageName string) error {
	if m.DeleteByPageFunc != nil {
		return m.DeleteByPageFunc(ctx, pageName)
	}
	return nil
}
