package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/ronappleton/advisorflow/internal/workflow"

// Dispatcher fires the templates that match a business event. Notifications
// are handed to the Notifier without waiting for delivery.
//
// The existence check and the batch create are not atomic. Two concurrent
// fires for the same entity and template can both see no records and both
// create the steps; at most one extra set of records results. Stores built
// with an upsert-by-key strategy reject the second set per record.
type Dispatcher struct {
	registry    *Registry
	codec       *Codec
	repo        Repository
	notifier    *Notifier
	logger      *zap.Logger
	now         func() time.Time
	concurrency int

	tracer   trace.Tracer
	created  metric.Int64Counter
	failures metric.Int64Counter
}

type DispatcherOption func(*Dispatcher)

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithConcurrency bounds how many templates are evaluated at once.
func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithNotifier(n *Notifier) DispatcherOption {
	return func(d *Dispatcher) { d.notifier = n }
}

func NewDispatcher(registry *Registry, codec *Codec, repo Repository, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:    registry,
		codec:       codec,
		repo:        repo,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: 4,
		tracer:      otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	meter := otel.Meter(instrumentationName)
	var err error
	if d.created, err = meter.Int64Counter("workflow.records.created",
		metric.WithDescription("Workflow step records created")); err != nil {
		d.created = noop.Int64Counter{}
	}
	if d.failures, err = meter.Int64Counter("workflow.fire.errors",
		metric.WithDescription("Errors collected while firing templates")); err != nil {
		d.failures = noop.Int64Counter{}
	}
	return d
}

type templateOutcome struct {
	template Template
	created  int
	steps    []string
	errs     []string
}

// Fire evaluates every enabled template matching event for the entity. It
// never returns an error: adapter failures are collected per template so one
// failing template does not stop the others.
func (d *Dispatcher) Fire(ctx context.Context, event TriggerEvent, entityID, entityName string, opts FireOptions) FireResult {
	result := FireResult{TriggeredTemplateNames: []string{}, Errors: []string{}}
	templates := d.registry.Matching(event, opts.SubjectContains)
	if len(templates) == 0 {
		return result
	}

	ctx, span := d.tracer.Start(ctx, "workflow.Fire", trace.WithAttributes(
		attribute.String("workflow.event", string(event)),
		attribute.String("workflow.entity_id", entityID),
		attribute.Int("workflow.templates", len(templates)),
	))
	defer span.End()

	now := d.now()
	outcomes := make([]templateOutcome, len(templates))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, t := range templates {
		g.Go(func() error {
			outcomes[i] = d.fireTemplate(ctx, t, entityID, entityName, opts, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.RecordsCreated += o.created
		result.Errors = append(result.Errors, o.errs...)
		switch {
		case o.created > 0:
			result.TriggeredTemplateNames = append(result.TriggeredTemplateNames, o.template.Name)
			d.notifier.Fired(ctx, FiredEvent{
				TemplateID:   o.template.ID,
				TemplateName: o.template.Name,
				EntityID:     entityID,
				EntityName:   entityName,
				StepIDs:      o.steps,
			})
		case len(o.errs) == 0:
			result.Skipped++
		}
	}

	d.created.Add(ctx, int64(result.RecordsCreated), metric.WithAttributes(attribute.String("workflow.event", string(event))))
	if len(result.Errors) > 0 {
		d.failures.Add(ctx, int64(len(result.Errors)), metric.WithAttributes(attribute.String("workflow.event", string(event))))
		span.SetStatus(codes.Error, fmt.Sprintf("%d errors", len(result.Errors)))
	}
	span.SetAttributes(attribute.Int("workflow.records_created", result.RecordsCreated))
	return result
}

// EvaluateScheduled fires scheduled templates for an entity. There is no
// background scheduler: read paths call this whenever the entity is viewed.
func (d *Dispatcher) EvaluateScheduled(ctx context.Context, entity Entity) FireResult {
	return d.Fire(ctx, TriggerScheduled, entity.ID, entity.Name, FireOptions{EntityCreatedAt: entity.CreatedAt})
}

func (d *Dispatcher) fireTemplate(ctx context.Context, t Template, entityID, entityName string, opts FireOptions, now time.Time) templateOutcome {
	out := templateOutcome{template: t}
	log := d.logger.With(zap.String("template_id", t.ID), zap.String("entity_id", entityID))

	records, err := d.repo.QueryByEntity(ctx, entityID, "")
	if err != nil {
		out.errs = append(out.errs, fmt.Sprintf("%s: query existing records: %v", t.Name, err))
		log.Error("query existing records", zap.Error(err))
		return out
	}
	existing := d.decodeTemplate(t.ID, records)
	pending := pendingSteps(t, existing)
	anchor := now
	if len(existing) > 0 {
		if len(pending) == 0 {
			log.Debug("instance already materialized")
			return out
		}
		if !t.Reevaluate {
			// A partial earlier fire: create only what is missing, on the
			// original schedule.
			anchor = earliest(existing)
			log.Info("resuming partially materialized instance", zap.Int("pending", len(pending)))
		}
	}

	var toFire []Step
	for _, s := range pending {
		if conditionMet(s.Condition, records, opts.EntityCreatedAt, now) {
			toFire = append(toFire, s)
		}
	}
	if len(toFire) == 0 {
		return out
	}

	due := map[string]time.Time{}
	for i, dt := range CascadeDueDates(anchor, t.Steps) {
		due[t.Steps[i].ID] = dt
	}
	batch := make([]Record, 0, len(toFire))
	for _, s := range toFire {
		batch = append(batch, d.materialize(t, s, entityID, entityName, due[s.ID]))
	}

	for i, item := range d.repo.CreateBatch(ctx, batch) {
		stepID := toFire[i].ID
		switch {
		case item.Err == nil:
			out.created++
			out.steps = append(out.steps, stepID)
		case errors.Is(item.Err, ErrDuplicate):
			log.Info("step already materialized by another request", zap.String("step_id", stepID))
		default:
			out.errs = append(out.errs, fmt.Sprintf("%s: create step %s: %v", t.Name, stepID, item.Err))
			log.Error("create step record", zap.String("step_id", stepID), zap.Error(item.Err))
		}
	}
	log.Info("template fired", zap.Int("created", out.created), zap.Int("failed", len(out.errs)))
	return out
}

func (d *Dispatcher) decodeTemplate(templateID string, records []Record) []decodedRecord {
	var out []decodedRecord
	for _, rec := range records {
		if ref, ok := d.codec.DecodeRecord(rec); ok && ref.TemplateID == templateID {
			out = append(out, decodedRecord{Record: rec, ref: ref})
		}
	}
	return out
}

func (d *Dispatcher) materialize(t Template, s Step, entityID, entityName string, due time.Time) Record {
	status := s.TaskStatus
	if status == "" {
		status = TaskStatusNotStarted
	}
	priority := s.TaskPriority
	if priority == "" {
		priority = PriorityNormal
	}
	return Record{
		EntityID:       entityID,
		EntityName:     entityName,
		Subject:        s.TaskSubject,
		Description:    Describe(t.ID, s.ID, s.TaskDescription),
		Status:         status,
		Priority:       priority,
		DueDate:        &due,
		IdempotencyKey: idempotencyKey(entityID, t.ID, s.ID),
	}
}
