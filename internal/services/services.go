package services

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"livepage/internal/capabilities"
	"livepage/internal/events"
	"livepage/internal/migrations"
	"livepage/internal/repositories"
)

// Services aggregates the page-facing services. Pages and Transforms share
// one set of page locks.
type Services struct {
	Pages      PageService
	Transforms TransformService
}

// Dependencies are the collaborators behind Services. Nil optional members
// get defaults: the default migration chain, the wall clock, slog.Default and
// an emitter that drops everything.
type Dependencies struct {
	Pages        repositories.PageRepository
	Records      repositories.TransformRecordRepository
	Gateway      Completer
	Sources      capabilities.Sources
	Migrator     *migrations.Migrator
	Emitter      events.Emitter
	Clock        func() time.Time
	Logger       *slog.Logger
	DefaultModel string
}

// NewServices constructs the service container using repositories backed by db.
func NewServices(db *gorm.DB, deps Dependencies) *Services {
	deps.Pages = repositories.NewPageRepository(db)
	deps.Records = repositories.NewTransformRecordRepository(db)
	return New(deps)
}

// New constructs the service container from explicit dependencies.
func New(deps Dependencies) *Services {
	if deps.Migrator == nil {
		deps.Migrator = migrations.Default()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	emitter := events.Scoped(deps.Emitter)

	store := &pageStore{
		pages:    deps.Pages,
		migrator: deps.Migrator,
		locks:    newPageLocks(),
		clock:    deps.Clock,
	}
	return &Services{
		Pages: &pageService{
			store:   store,
			records: deps.Records,
			emitter: emitter,
			logger:  deps.Logger.With("service", "pages"),
		},
		Transforms: &transformService{
			store:        store,
			records:      deps.Records,
			gateway:      deps.Gateway,
			sources:      deps.Sources,
			emitter:      emitter,
			logger:       deps.Logger.With("service", "transforms"),
			defaultModel: deps.DefaultModel,
		},
	}
}

// Startup starts every service in the container.
func (s *Services) Startup(ctx context.Context) error {
	if err := s.Pages.Startup(ctx); err != nil {
		return err
	}
	return s.Transforms.Startup(ctx)
}
