package mocks

import (
	"context"

	"livepage/internal/models"
)

type PageRepositoryMock struct {
	GetFunc    func(ctx context.Context, name string) (*models.Page, error)
	SaveFunc   func(ctx context.Context, page *models.Page) error
	ListFunc   func(ctx context.Context) ([]models.Page, error)
	DeleteFunc func(ctx context.Context, name string) (bool, error)
}

func (m *PageRepositoryMock) Get(ctx context.Context, name string) (*models.Page, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, name)
	}
	return nil, nil
}

func (m *PageRepositoryMock) Save(ctx context.Context, page *models.Page) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, page)
	}
	return nil
}

func (m *PageRepositoryMock) List(ctx context.Context) ([]models.Page, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Page{}, nil
}

func (m *PageRepositoryMock) Delete(ctx context.Context, name string) (bool, error) {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, name)
	}
	return false, nil
}
