package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"livepage/internal/dom"
	"livepage/internal/events"
	"livepage/internal/migrations"
	"livepage/internal/models"
	"livepage/internal/repositories"
)

type CreatePageInput struct {
	Name       string          `json:"name"`
	Markup     string          `json:"markup"`
	Title      string          `json:"title,omitempty"`
	Categories []string        `json:"categories,omitempty"`
	Pinned     bool            `json:"pinned,omitempty"`
	ShowInAll  *bool           `json:"showInAll,omitempty"`
	Mode       models.PageMode `json:"mode,omitempty"`
}

// MetadataPatch changes only the fields that are set.
type MetadataPatch struct {
	Title      *string          `json:"title,omitempty"`
	Categories *[]string        `json:"categories,omitempty"`
	Pinned     *bool            `json:"pinned,omitempty"`
	ShowInAll  *bool            `json:"showInAll,omitempty"`
	Mode       *models.PageMode `json:"mode,omitempty"`
}

type PageService interface {
	Startup(ctx context.Context) error
	Get(ctx context.Context, name string) (*models.PageView, error)
	List(ctx context.Context) ([]models.PageMetadata, error)
	Create(ctx context.Context, in CreatePageInput) (*models.PageView, error)
	UpdateMarkup(ctx context.Context, name, markup string) (*models.PageView, error)
	UpdateMetadata(ctx context.Context, name string, patch MetadataPatch) (*models.PageView, error)
	Delete(ctx context.Context, name string) error
	History(ctx context.Context, name string, limit int) ([]models.TransformRecord, error)
}

type pageService struct {
	ctx     context.Context
	store   *pageStore
	records repositories.TransformRecordRepository
	emitter events.Emitter
	logger  *slog.Logger
}

func (s *pageService) Startup(ctx context.Context) error {
	s.ctx = ctx
	if s.store.pages == nil {
		return fmt.Errorf("page repository not configured")
	}
	if s.store.migrator == nil {
		return fmt.Errorf("migrator not configured")
	}
	return nil
}

// Get returns the page at the current schema version. A stale page is saved
// back once migrated unless a transform holds it; the transform saves its
// own migrated state.
func (s *pageService) Get(ctx context.Context, name string) (*models.PageView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errPageNameRequired
	}

	if !s.store.locks.acquire(name) {
		loaded, err := s.store.load(ctx, name)
		if err != nil {
			return nil, err
		}
		v, err := view(loaded.state)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
	defer s.store.locks.release(name)

	loaded, err := s.store.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if loaded.migrated {
		if err := s.store.save(ctx, loaded.row, loaded.state); err != nil {
			return nil, err
		}
		s.logger.Info("page migrated", "page", name, "schemaVersion", loaded.state.Metadata.SchemaVersion)
		s.emitter.Emit(events.WithPage(ctx, name), events.PageEventMigrated,
			events.NewInfo(fmt.Sprintf("Migrated to schema version %d", loaded.state.Metadata.SchemaVersion)))
	}
	v, err := view(loaded.state)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *pageService) List(ctx context.Context) ([]models.PageMetadata, error) {
	rows, err := s.store.pages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: list pages: %w", err)
	}
	out := make([]models.PageMetadata, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Metadata())
	}
	return out, nil
}

// Create stores a new page. The markup goes through the whole migration
// chain so it satisfies every rule from the start.
func (s *pageService) Create(ctx context.Context, in CreatePageInput) (*models.PageView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errPageNameRequired
	}
	if !s.store.locks.acquire(name) {
		return nil, ErrPageBusy
	}
	defer s.store.locks.release(name)

	existing, err := s.store.pages.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("service: create page %s: %w", name, err)
	}
	if existing != nil {
		return nil, ErrPageExists
	}

	doc, err := dom.Parse(in.Markup)
	if err != nil {
		return nil, fmt.Errorf("%w: parse markup: %v", ErrInvalidInput, err)
	}
	dom.Strip(doc)

	now := s.store.clock()
	showInAll := true
	if in.ShowInAll != nil {
		showInAll = *in.ShowInAll
	}
	mode, err := parseMode(in.Mode)
	if err != nil {
		return nil, err
	}

	state, _, err := s.store.migrator.Migrate(migrations.State{
		Document: doc,
		Metadata: models.PageMetadata{
			Name:         name,
			Title:        strings.TrimSpace(in.Title),
			Categories:   in.Categories,
			Pinned:       in.Pinned,
			ShowInAll:    showInAll,
			CreatedAt:    now,
			LastModified: now,
			Mode:         mode,
		},
	})
	if err != nil {
		return nil, err
	}

	row := &models.Page{Name: name}
	if err := s.store.save(ctx, row, state); err != nil {
		return nil, err
	}
	s.emitter.Emit(events.WithPage(ctx, name), events.PageEventUpdated, events.NewSuccess("Page created"))

	v := rowView(row)
	return &v, nil
}

// UpdateMarkup replaces the page body directly, outside any transform.
func (s *pageService) UpdateMarkup(ctx context.Context, name, markup string) (*models.PageView, error) {
	return s.update(ctx, name, func(state *migrations.State) error {
		doc, err := dom.Parse(markup)
		if err != nil {
			return fmt.Errorf("%w: parse markup: %v", ErrInvalidInput, err)
		}
		dom.Strip(doc)
		state.Document = doc
		if title := doc.Title(); title != "" {
			state.Metadata.Title = title
		}
		return nil
	})
}

func (s *pageService) UpdateMetadata(ctx context.Context, name string, patch MetadataPatch) (*models.PageView, error) {
	return s.update(ctx, name, func(state *migrations.State) error {
		meta := &state.Metadata
		if patch.Title != nil {
			meta.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Categories != nil {
			meta.Categories = migrations.NormalizeCategories(*patch.Categories)
		}
		if patch.Pinned != nil {
			meta.Pinned = *patch.Pinned
		}
		if patch.ShowInAll != nil {
			meta.ShowInAll = *patch.ShowInAll
		}
		if patch.Mode != nil {
			mode, err := parseMode(*patch.Mode)
			if err != nil {
				return err
			}
			meta.Mode = mode
		}
		return nil
	})
}

func (s *pageService) update(ctx context.Context, name string, change func(*migrations.State) error) (*models.PageView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errPageNameRequired
	}
	if !s.store.locks.acquire(name) {
		return nil, ErrPageBusy
	}
	defer s.store.locks.release(name)

	loaded, err := s.store.load(ctx, name)
	if err != nil {
		return nil, err
	}
	state := loaded.state
	if err := change(&state); err != nil {
		return nil, err
	}
	state.Metadata.LastModified = s.store.clock()

	if err := s.store.save(ctx, loaded.row, state); err != nil {
		return nil, err
	}
	s.emitter.Emit(events.WithPage(ctx, name), events.PageEventUpdated, events.NewSuccess("Page updated"))

	v, err := view(state)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *pageService) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errPageNameRequired
	}
	if !s.store.locks.acquire(name) {
		return ErrPageBusy
	}
	defer s.store.locks.release(name)

	deleted, err := s.store.pages.Delete(ctx, name)
	if err != nil {
		return fmt.Errorf("service: delete page %s: %w", name, err)
	}
	if !deleted {
		return ErrPageNotFound
	}
	if s.records != nil {
		if err := s.records.DeleteByPage(ctx, name); err != nil {
			s.logger.Warn("failed to delete transform history", "page", name, "error", err)
		}
	}
	s.emitter.Emit(events.WithPage(ctx, name), events.PageEventDeleted, events.NewInfo("Page deleted"))
	return nil
}

func (s *pageService) History(ctx context.Context, name string, limit int) ([]models.TransformRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errPageNameRequired
	}
	records, err := s.records.ListByPage(ctx, name, limit)
	if err != nil {
		return nil, fmt.Errorf("service: list transforms for %s: %w", name, err)
	}
	return records, nil
}

func parseMode(mode models.PageMode) (models.PageMode, error) {
	switch models.PageMode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case "", models.PageUnlocked:
		return models.PageUnlocked, nil
	case models.PageLocked:
		return models.PageLocked, nil
	}
	return "", fmt.Errorf("%w: unknown page mode %q", ErrInvalidInput, mode)
}

// IsNotFound reports whether err means the page does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}
