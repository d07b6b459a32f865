package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"livepage/internal/database"
	"livepage/internal/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Init(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestPageRepository_SaveUpsertsByName(t *testing.T) {
	repo := NewPageRepository(openDB(t))
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	missing, err := repo.Get(ctx, "home")
	require.NoError(t, err)
	assert.Nil(t, missing)

	page := &models.Page{
		Name:          "home",
		Title:         "Home",
		Categories:    []string{"news"},
		ShowInAll:     false,
		SchemaVersion: 3,
		Markup:        "<p>one</p>",
		CreatedAt:     created,
		LastModified:  created,
	}
	require.NoError(t, repo.Save(ctx, page))

	got, err := repo.Get(ctx, "home")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "<p>one</p>", got.Markup)
	assert.Equal(t, []string{"news"}, got.Categories)
	assert.False(t, got.ShowInAll)
	assert.Equal(t, models.PageUnlocked, got.Mode)
	assert.True(t, created.Equal(got.CreatedAt))

	later := created.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, &models.Page{
		Name:          "home",
		Title:         "Home 2",
		Pinned:        true,
		ShowInAll:     true,
		SchemaVersion: 3,
		Mode:          models.PageLocked,
		Markup:        "<p>two</p>",
		CreatedAt:     later,
		LastModified:  later,
	}))

	got, err = repo.Get(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "<p>two</p>", got.Markup)
	assert.Equal(t, "Home 2", got.Title)
	assert.True(t, got.Pinned)
	assert.True(t, got.ShowInAll)
	assert.Equal(t, models.PageLocked, got.Mode)
	assert.True(t, later.Equal(got.LastModified))
	assert.True(t, created.Equal(got.CreatedAt), "creation time is kept on overwrite")

	pages, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestPageRepository_ListAndDelete(t *testing.T) {
	repo := NewPageRepository(openDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, p := range []models.Page{
		{Name: "b", Markup: "<p>b</p>", LastModified: now},
		{Name: "a", Markup: "<p>a</p>", LastModified: now},
		{Name: "z", Markup: "<p>z</p>", Pinned: true, LastModified: now},
	} {
		p := p
		require.NoError(t, repo.Save(ctx, &p))
	}

	pages, err := repo.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(pages))
	for _, p := range pages {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"z", "a", "b"}, names)

	deleted, err := repo.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Error(t, repo.Save(ctx, &models.Page{Name: "  "}))
	assert.Error(t, repo.Save(ctx, nil))
}

func TestTransformRecordRepository_ListByPage(t *testing.T) {
	repo := NewTransformRecordRepository(openDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, repo.Create(ctx, &models.TransformRecord{
			ID:         id,
			PageName:   "home",
			Status:     models.TransformApplied,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.TransformRecord{
		ID: "other", PageName: "about", Status: models.TransformFailed,
		FailureKind: models.FailureProvider, StartedAt: base, FinishedAt: base,
	}))

	records, err := repo.ListByPage(ctx, "home", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "r3", records[0].ID)
	assert.Equal(t, "r2", records[1].ID)

	all, err := repo.ListByPage(ctx, "home", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.DeleteByPage(ctx, "home"))
	all, err = repo.ListByPage(ctx, "home", 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Error(t, repo.Create(ctx, &models.TransformRecord{PageName: "home"}))
}
