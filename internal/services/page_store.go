package services

import (
	"context"
	"fmt"
	"time"

	"livepage/internal/dom"
	"livepage/internal/migrations"
	"livepage/internal/models"
	"livepage/internal/repositories"
)

// pageStore is the read-migrate-write path shared by the page and transform
// services. Callers hold the page lock around load and save.
type pageStore struct {
	pages    repositories.PageRepository
	migrator *migrations.Migrator
	locks    *pageLocks
	clock    func() time.Time
}

type loadedPage struct {
	row      *models.Page
	state    migrations.State
	migrated bool
}

// storageError marks failures of the repository itself.
type storageError struct{ err error }

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

// load reads a page and brings it to the current schema without saving.
func (s *pageStore) load(ctx context.Context, name string) (*loadedPage, error) {
	row, err := s.pages.Get(ctx, name)
	if err != nil {
		return nil, &storageError{fmt.Errorf("load page %s: %w", name, err)}
	}
	if row == nil {
		return nil, ErrPageNotFound
	}

	doc, err := dom.Parse(row.Markup)
	if err != nil {
		return nil, &migrations.MigrationError{From: row.SchemaVersion, Err: fmt.Errorf("parse stored markup: %w", err)}
	}
	state, migrated, err := s.migrator.Migrate(migrations.State{Document: doc, Metadata: row.Metadata()})
	if err != nil {
		return nil, err
	}
	return &loadedPage{row: row, state: state, migrated: migrated}, nil
}

// save writes state over row.
func (s *pageStore) save(ctx context.Context, row *models.Page, state migrations.State) error {
	markup, err := state.Document.Render()
	if err != nil {
		return fmt.Errorf("render page %s: %w", row.Name, err)
	}
	next := *row
	next.SetMetadata(state.Metadata)
	next.Markup = markup
	if err := s.pages.Save(ctx, &next); err != nil {
		return &storageError{fmt.Errorf("save page %s: %w", row.Name, err)}
	}
	*row = next
	return nil
}

func view(state migrations.State) (models.PageView, error) {
	markup, err := state.Document.Render()
	if err != nil {
		return models.PageView{}, err
	}
	meta := state.Metadata
	meta.Categories = append([]string(nil), meta.Categories...)
	return models.PageView{Markup: markup, Metadata: meta}, nil
}

func rowView(row *models.Page) models.PageView {
	return models.PageView{Markup: row.Markup, Metadata: row.Metadata()}
}
