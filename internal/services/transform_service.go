package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"livepage/internal/capabilities"
	"livepage/internal/dom"
	"livepage/internal/events"
	"livepage/internal/llm/client"
	"livepage/internal/migrations"
	"livepage/internal/models"
	"livepage/internal/prompt"
	"livepage/internal/repositories"
)

// Completer is the gateway as seen by the orchestrator.
type Completer interface {
	Complete(ctx context.Context, modelID string, payload prompt.Payload) (string, error)
}

type TransformRequest struct {
	PageName   string               `json:"pageName"`
	Message    string               `json:"message"`
	PriorTurns []models.ChatMessage `json:"priorTurns,omitempty"`
	ModelID    string               `json:"modelId,omitempty"`
}

type TransformService interface {
	Startup(ctx context.Context) error
	// Transform runs one natural-language edit against a page. Pipeline
	// failures come back as a result with a Diagnostic; the error is only
	// for requests that cannot be attempted at all.
	Transform(ctx context.Context, req TransformRequest) (*models.TransformResult, error)
}

type transformService struct {
	ctx          context.Context
	store        *pageStore
	records      repositories.TransformRecordRepository
	gateway      Completer
	sources      capabilities.Sources
	emitter      events.Emitter
	logger       *slog.Logger
	defaultModel string
}

func (s *transformService) Startup(ctx context.Context) error {
	s.ctx = ctx
	if s.gateway == nil {
		return fmt.Errorf("provider gateway not configured")
	}
	if s.records == nil {
		return fmt.Errorf("transform record repository not configured")
	}
	return nil
}

// transformRun carries one attempt from lock to audit.
type transformRun struct {
	id        string
	req       TransformRequest
	modelID   string
	startedAt time.Time
	before    models.PageView
}

func (s *transformService) Transform(ctx context.Context, req TransformRequest) (*models.TransformResult, error) {
	name := strings.TrimSpace(req.PageName)
	if name == "" {
		return nil, errPageNameRequired
	}
	req.PageName = name
	ctx = events.WithPage(ctx, name)

	run := &transformRun{
		id:        uuid.NewString(),
		req:       req,
		modelID:   strings.TrimSpace(req.ModelID),
		startedAt: s.store.clock(),
	}
	if run.modelID == "" {
		run.modelID = s.defaultModel
	}

	if !s.store.locks.acquire(name) {
		if row, err := s.store.pages.Get(ctx, name); err == nil && row != nil {
			run.before = rowView(row)
		}
		return s.fail(ctx, run, models.FailureBusy, "", ErrPageBusy), nil
	}
	defer s.store.locks.release(name)

	loaded, err := s.store.load(ctx, name)
	if err != nil {
		var merr *migrations.MigrationError
		switch {
		case errors.Is(err, ErrPageNotFound):
			return s.fail(ctx, run, models.FailureNotFound, "", err), nil
		case errors.As(err, &merr):
			return s.fail(ctx, run, models.FailureMigration, merr.Rule, err), nil
		default:
			return s.fail(ctx, run, models.FailureStorage, "load", err), nil
		}
	}
	run.before = rowView(loaded.row)

	if loaded.state.Metadata.Mode == models.PageLocked {
		return s.fail(ctx, run, models.FailureLocked, "", ErrPageLocked), nil
	}
	if strings.TrimSpace(req.Message) == "" {
		return s.fail(ctx, run, models.FailureValidation, "message", fmt.Errorf("message is required")), nil
	}

	ann := dom.Annotate(loaded.state.Document)

	snapshot, err := s.sources.Collect(ctx)
	if err != nil {
		return s.fail(ctx, run, models.FailureStorage, "capabilities", fmt.Errorf("collect capabilities: %w", err)), nil
	}

	_, payload, err := prompt.Compose(ann, prompt.Input{
		Message:    req.Message,
		PriorTurns: req.PriorTurns,
		Snapshot:   snapshot,
	})
	if err != nil {
		return s.fail(ctx, run, models.FailureValidation, "message", err), nil
	}

	raw, err := s.gateway.Complete(ctx, run.modelID, payload)
	if err != nil {
		var perr *client.ProviderError
		if errors.As(err, &perr) {
			if perr.Kind == client.KindCanceled {
				return s.fail(ctx, run, models.FailureCanceled, "", err), nil
			}
			return s.fail(ctx, run, models.FailureProvider, string(perr.Kind), err), nil
		}
		if ctx.Err() != nil {
			return s.fail(ctx, run, models.FailureCanceled, "", err), nil
		}
		return s.fail(ctx, run, models.FailureProvider, string(client.KindUnavailable), err), nil
	}

	batch, err := dom.ParseBatch(raw, ann)
	if err != nil {
		return s.fail(ctx, run, models.FailureValidation, validationDetail(err), err), nil
	}

	next, err := dom.Apply(ann, batch)
	if err != nil {
		return s.fail(ctx, run, models.FailureValidation, validationDetail(err), err), nil
	}

	state := migrations.State{Document: next, Metadata: loaded.state.Metadata}
	if title := next.Title(); title != "" {
		state.Metadata.Title = title
	}

	if err := ctx.Err(); err != nil {
		return s.fail(ctx, run, models.FailureCanceled, "", err), nil
	}

	if len(batch) > 0 || loaded.migrated {
		if len(batch) > 0 {
			state.Metadata.LastModified = s.store.clock()
		}
		if err := s.store.save(ctx, loaded.row, state); err != nil {
			return s.fail(ctx, run, models.FailureStorage, "save", err), nil
		}
	}

	after, err := view(state)
	if err != nil {
		return s.fail(ctx, run, models.FailureStorage, "render", err), nil
	}

	result := &models.TransformResult{
		TransformID: run.id,
		Applied:     true,
		Markup:      after.Markup,
		Metadata:    after.Metadata,
		Operations:  len(batch),
	}
	s.audit(ctx, run, result)
	s.logger.Info("transform applied",
		"page", name, "transform", run.id, "model", run.modelID, "operations", len(batch))
	s.emitter.Emit(ctx, events.PageEventTransform,
		events.NewSuccess(fmt.Sprintf("Applied %d operation(s)", len(batch))).
			With("transformId", run.id).
			With("operations", strconv.Itoa(len(batch))))
	return result, nil
}

// fail builds the failed result around the untouched pre-transform state.
func (s *transformService) fail(ctx context.Context, run *transformRun, kind models.FailureKind, detail string, err error) *models.TransformResult {
	result := &models.TransformResult{
		TransformID: run.id,
		Applied:     false,
		Markup:      run.before.Markup,
		Metadata:    run.before.Metadata,
		Diagnostic: &models.Diagnostic{
			Kind:   kind,
			Detail: detail,
			Reason: err.Error(),
		},
	}
	s.audit(ctx, run, result)

	level := slog.LevelWarn
	if kind == models.FailureStorage || kind == models.FailureMigration {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "transform failed",
		"page", run.req.PageName, "transform", run.id, "model", run.modelID,
		"kind", string(kind), "detail", detail, "error", err)

	evt := events.NewError(err.Error()).With("transformId", run.id).With("kind", string(kind))
	if kind == models.FailureBusy {
		evt = events.NewWarn(err.Error()).With("transformId", run.id).With("kind", string(kind))
	}
	s.emitter.Emit(ctx, events.PageEventTransform, evt)
	return result
}

// audit records the attempt. It runs even after cancellation and a failure
// here never changes the result.
func (s *transformService) audit(ctx context.Context, run *transformRun, result *models.TransformResult) {
	record := &models.TransformRecord{
		ID:         run.id,
		PageName:   run.req.PageName,
		ModelID:    run.modelID,
		Message:    run.req.Message,
		Status:     models.TransformApplied,
		Operations: result.Operations,
		StartedAt:  run.startedAt,
		FinishedAt: s.store.clock(),
	}
	if d := result.Diagnostic; d != nil {
		record.Status = models.TransformFailed
		record.FailureKind = d.Kind
		record.Reason = d.Reason
	}
	if err := s.records.Create(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Error("failed to record transform", "page", run.req.PageName, "transform", run.id, "error", err)
	}
}

func validationDetail(err error) string {
	var verr *dom.ValidationError
	if errors.As(err, &verr) {
		if verr.Index < 0 {
			return "batch"
		}
		return "operation " + strconv.Itoa(verr.Index)
	}
	var aerr *dom.ApplyError
	if errors.As(err, &aerr) {
		return "apply operation " + strconv.Itoa(aerr.Index)
	}
	return ""
}
