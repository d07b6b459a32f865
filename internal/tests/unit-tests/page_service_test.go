package unit_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livepage/internal/dom"
	"livepage/internal/events"
	"livepage/internal/migrations"
	"livepage/internal/models"
	"livepage/internal/services"
	"livepage/internal/tests/mocks"
)

func ptr[T any](v T) *T { return &v }

func TestPageService_GetMigratesAndPersists(t *testing.T) {
	stale := storedPage("home", `<!DOCTYPE html><html><head><title>Hello</title></head><body><p data-ai-id="3">x</p></body></html>`)
	stale.SchemaVersion = 0
	stale.Title = ""
	stale.Mode = ""
	h := newHarness(t, replying(`[]`), stale)

	got, err := h.svc.Pages.Get(context.Background(), "home")
	require.NoError(t, err)

	assert.Equal(t, migrations.Default().Current(), got.Metadata.SchemaVersion)
	assert.Equal(t, "Hello", got.Metadata.Title)
	assert.Equal(t, models.PageUnlocked, got.Metadata.Mode)
	assert.NotContains(t, got.Markup, "data-ai-id")
	assert.Contains(t, got.Markup, `<meta charset="utf-8"/>`)

	stored, _ := h.store.Page("home")
	assert.Equal(t, got.Markup, stored.Markup)
	assert.Equal(t, migrations.Default().Current(), stored.SchemaVersion)
	assert.Equal(t, 1, h.store.Saves())

	evts := h.recorder.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.PageEventMigrated, evts[0].Name)

	_, err = h.svc.Pages.Get(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.Saves(), "a current page is not written again")
}

func TestPageService_GetMissing(t *testing.T) {
	h := newHarness(t, replying(`[]`))

	_, err := h.svc.Pages.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, services.ErrPageNotFound)
	assert.True(t, services.IsNotFound(err))
}

func TestPageService_CreateRunsMigrationChain(t *testing.T) {
	h := newHarness(t, replying(`[]`))
	ctx := context.Background()

	got, err := h.svc.Pages.Create(ctx, services.CreatePageInput{
		Name:       " home ",
		Markup:     `<h1 data-node-id="1">Welcome</h1><p>body</p>`,
		Categories: []string{"Docs", "docs", " "},
		ShowInAll:  ptr(false),
	})
	require.NoError(t, err)

	assert.Equal(t, "home", got.Metadata.Name)
	assert.Equal(t, `<h1>Welcome</h1><p>body</p>`, got.Markup)
	assert.Equal(t, "Welcome", got.Metadata.Title)
	assert.Equal(t, []string{"docs"}, got.Metadata.Categories)
	assert.False(t, got.Metadata.ShowInAll)
	assert.Equal(t, now, got.Metadata.CreatedAt)
	assert.Equal(t, migrations.Default().Current(), got.Metadata.SchemaVersion)

	_, err = h.svc.Pages.Create(ctx, services.CreatePageInput{Name: "home", Markup: "<p>again</p>"})
	assert.ErrorIs(t, err, services.ErrPageExists)

	_, err = h.svc.Pages.Create(ctx, services.CreatePageInput{Name: "x", Markup: "<p/>", Mode: "frozen"})
	assert.Error(t, err)

	_, err = h.svc.Pages.Create(ctx, services.CreatePageInput{Name: "", Markup: "<p/>"})
	assert.Error(t, err)
}

func TestPageService_UpdateMarkupAndMetadata(t *testing.T) {
	h := newHarness(t, replying(`[]`), storedPage("home", `<p>x</p>`))
	ctx := context.Background()

	got, err := h.svc.Pages.UpdateMarkup(ctx, "home", `<h1 data-node-id="4">Fresh</h1>`)
	require.NoError(t, err)
	assert.Equal(t, `<h1>Fresh</h1>`, got.Markup)
	assert.Equal(t, "Fresh", got.Metadata.Title)
	assert.Equal(t, now, got.Metadata.LastModified)

	got, err = h.svc.Pages.UpdateMetadata(ctx, "home", services.MetadataPatch{
		Title:      ptr("Custom"),
		Categories: &[]string{"Zeta", "alpha"},
		Pinned:     ptr(true),
		Mode:       ptr(models.PageLocked),
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom", got.Metadata.Title)
	assert.Equal(t, []string{"alpha", "zeta"}, got.Metadata.Categories)
	assert.True(t, got.Metadata.Pinned)
	assert.True(t, got.Metadata.ShowInAll)
	assert.Equal(t, models.PageLocked, got.Metadata.Mode)
	assert.Equal(t, `<h1>Fresh</h1>`, got.Markup)

	res := h.transform(t, "home", "edit while locked")
	assert.Equal(t, models.FailureLocked, res.Diagnostic.Kind)

	_, err = h.svc.Pages.UpdateMetadata(ctx, "home", services.MetadataPatch{Mode: ptr(models.PageMode("weird"))})
	assert.Error(t, err)
	_, err = h.svc.Pages.UpdateMarkup(ctx, "missing", `<p/>`)
	assert.ErrorIs(t, err, services.ErrPageNotFound)
}

func TestPageService_ListDeleteHistory(t *testing.T) {
	h := newHarness(t, replying(`[{"action":"delete","nodeId":"1"}]`),
		storedPage("b", `<p>b</p>`), storedPage("a", `<p>a</p><p>keep</p>`))
	ctx := context.Background()

	list, err := h.svc.Pages.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	h.transform(t, "a", "drop the first paragraph")
	h.transform(t, "a", "and again")
	history, err := h.svc.Pages.History(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.TransformApplied, history[0].Status)

	require.NoError(t, h.svc.Pages.Delete(ctx, "a"))
	assert.ErrorIs(t, h.svc.Pages.Delete(ctx, "a"), services.ErrPageNotFound)
	history, err = h.svc.Pages.History(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPageService_StorageErrorsAreWrapped(t *testing.T) {
	store := mocks.NewMemoryStore()
	pages := store.Pages()
	pages.ListFunc = func(context.Context) ([]models.Page, error) { return nil, assert.AnError }
	pages.GetFunc = func(context.Context, string) (*models.Page, error) { return nil, assert.AnError }
	svc := services.New(services.Dependencies{Pages: pages, Records: store.Records()})

	_, err := svc.Pages.List(context.Background())
	assert.ErrorIs(t, err, assert.AnError)

	_, err = svc.Pages.Get(context.Background(), "home")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, errors.Is(err, services.ErrPageNotFound))
}

func TestPageService_StoredMarkupNeverKeepsNodeIDs(t *testing.T) {
	h := newHarness(t, replying(`[{"action":"insert","parentId":"1","html":"<span data-node-id=\"1\">echo</span>"}]`),
		storedPage("home", `<div></div>`))

	res := h.transform(t, "home", "add a span")
	require.True(t, res.Applied)

	stored, _ := h.store.Page("home")
	assert.NotContains(t, stored.Markup, dom.NodeIDAttr)
	assert.Equal(t, `<div><span>echo</span></div>`, stored.Markup)
}
