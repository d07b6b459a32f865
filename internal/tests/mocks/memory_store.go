package mocks

import (
	"context"
	"sort"
	"sync"

	"livepage/internal/models"
)

// MemoryStore backs the repository mocks with maps so service tests can
// observe what was written.
type MemoryStore struct {
	mu      sync.Mutex
	pages   map[string]models.Page
	records []models.TransformRecord
	saves   int
}

func NewMemoryStore(pages ...models.Page) *MemoryStore {
	s := &MemoryStore{pages: make(map[string]models.Page)}
	for _, p := range pages {
		s.pages[p.Name] = clonePage(p)
	}
	return s
}

func clonePage(p models.Page) models.Page {
	p.Categories = append([]string(nil), p.Categories...)
	return p
}

// Pages returns a PageRepositoryMock reading and writing the store.
func (s *MemoryStore) Pages() *PageRepositoryMock {
	return &PageRepositoryMock{
		GetFunc: func(ctx context.Context, name string) (*models.Page, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			p, ok := s.pages[name]
			if !ok {
				return nil, nil
			}
			p = clonePage(p)
			return &p, nil
		},
		SaveFunc: func(ctx context.Context, page *models.Page) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.saves++
			s.pages[page.Name] = clonePage(*page)
			return nil
		},
		ListFunc: func(ctx context.Context) ([]models.Page, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([]models.Page, 0, len(s.pages))
			for _, p := range s.pages {
				out = append(out, clonePage(p))
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
			return out, nil
		},
		DeleteFunc: func(ctx context.Context, name string) (bool, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			_, ok := s.pages[name]
			delete(s.pages, name)
			return ok, nil
		},
	}
}

// Records returns a TransformRecordRepositoryMock appending to the store.
func (s *MemoryStore) Records() *TransformRecordRepositoryMock {
	return &TransformRecordRepositoryMock{
		CreateFunc: func(ctx context.Context, record *models.TransformRecord) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.records = append(s.records, *record)
			return nil
		},
		ListByPageFunc: func(ctx context.Context, pageName string, limit int) ([]models.TransformRecord, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []models.TransformRecord
			for i := len(s.records) - 1; i >= 0; i-- {
				if s.records[i].PageName == pageName {
					out = append(out, s.records[i])
				}
			}
			if limit > 0 && len(out) > limit {
				out = out[:limit]
			}
			return out, nil
		},
		DeleteByPageFunc: func(ctx context.Context, pageName string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			kept := s.records[:0]
			for _, r := range s.records {
				if r.PageName != pageName {
					kept = append(kept, r)
				}
			}
			s.records = kept
			return nil
		},
	}
}

func (s *MemoryStore) Page(name string) (models.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[name]
	return clonePage(p), ok
}

func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) TransformRecords() []models.TransformRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TransformRecord(nil), s.records...)
}
