package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"livepage/internal/models"
)

type PageRepository interface {
	Get(ctx context.Context, name string) (*models.Page, error)
	Save(ctx context.Context, page *models.Page) error
	List(ctx context.Context) ([]models.Page, error)
	Delete(ctx context.Context, name string) (bool, error)
}

type pageRepository struct {
	db *gorm.DB
}

func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

// Get returns nil, nil when no page has that name.
func (r *pageRepository) Get(ctx context.Context, name string) (*models.Page, error) {
	var page models.Page
	res := r.db.WithContext(ctx).Where("name = ?", name).Take(&page)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &page, nil
}

// Save inserts the page or overwrites the stored page with the same name.
func (r *pageRepository) Save(ctx context.Context, page *models.Page) error {
	if page == nil {
		return fmt.Errorf("page is required")
	}
	page.Name = strings.TrimSpace(page.Name)
	if page.Name == "" {
		return fmt.Errorf("page name is required")
	}
	if page.Mode == "" {
		page.Mode = models.PageUnlocked
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "categories", "pinned", "show_in_all", "schema_version",
			"mode", "markup", "last_modified",
		}),
	}).Create(page).Error
}

// List returns pinned pages first, then by name.
func (r *pageRepository) List(ctx context.Context) ([]models.Page, error) {
	var pages []models.Page
	res := r.db.WithContext(ctx).Order("pinned desc").Order("name asc").Find(&pages)
	if res.Error != nil {
		return nil, res.Error
	}
	return pages, nil
}

func (r *pageRepository) Delete(ctx context.Context, name string) (bool, error) {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Page{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
