package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrUnsupported = errors.New("operation not supported by record store")

const DefaultActivePageSize = 200

// Reconstructor derives workflow instances from the records in the store.
// Nothing is cached; every call reflects the store as it is read.
type Reconstructor struct {
	repo     Repository
	registry *Registry
	codec    *Codec
	logger   *zap.Logger
	pageSize int
}

func NewReconstructor(repo Repository, registry *Registry, codec *Codec, logger *zap.Logger, pageSize int) *Reconstructor {
	if pageSize <= 0 {
		pageSize = DefaultActivePageSize
	}
	return &Reconstructor{repo: repo, registry: registry, codec: codec, logger: logger, pageSize: pageSize}
}

type decodedRecord struct {
	Record
	ref StepRef
}

// decodeAll groups an entity's records by template id. Records that do not
// decode are not workflow records and are dropped.
func (r *Reconstructor) decodeAll(records []Record) map[string][]decodedRecord {
	out := map[string][]decodedRecord{}
	for _, rec := range records {
		ref, ok := r.codec.DecodeRecord(rec)
		if !ok {
			continue
		}
		out[ref.TemplateID] = append(out[ref.TemplateID], decodedRecord{Record: rec, ref: ref})
	}
	return out
}

// Instances returns one instance per template with at least one materialized
// record for the entity, in catalog order.
func (r *Reconstructor) Instances(ctx context.Context, entityID string) ([]Instance, error) {
	records, err := r.repo.QueryByEntity(ctx, entityID, "")
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", entityID, err)
	}
	return r.build(entityID, records), nil
}

func (r *Reconstructor) build(entityID string, records []Record) []Instance {
	grouped := r.decodeAll(records)
	var out []Instance
	for _, t := range r.registry.templates {
		decoded, ok := grouped[t.ID]
		if !ok {
			continue
		}
		out = append(out, buildInstance(t, entityID, decoded))
	}
	return out
}

func buildInstance(t Template, entityID string, decoded []decodedRecord) Instance {
	inst := Instance{
		TemplateID:     t.ID,
		TemplateName:   t.Name,
		EntityID:       entityID,
		TotalSteps:     len(t.Steps),
		CompletedSteps: []string{},
	}
	known := map[string]bool{}
	for _, s := range t.Steps {
		known[s.ID] = true
	}
	done := map[string]bool{}
	for _, d := range decoded {
		if inst.StartedAt.IsZero() || d.CreatedAt.Before(inst.StartedAt) {
			inst.StartedAt = d.CreatedAt
			inst.EntityName = d.EntityName
		}
		// Duplicates from concurrent fires count once.
		if known[d.ref.StepID] && isCompleted(d.Status) && !done[d.ref.StepID] {
			done[d.ref.StepID] = true
		}
	}
	for _, s := range t.Steps {
		if done[s.ID] {
			inst.CompletedSteps = append(inst.CompletedSteps, s.ID)
		}
	}
	inst.CurrentStepIndex = len(inst.CompletedSteps)
	switch {
	case len(inst.CompletedSteps) == len(t.Steps):
		inst.Status = StatusCompleted
	case !t.Enabled:
		inst.Status = StatusPaused
	default:
		inst.Status = StatusActive
	}
	return inst
}

func isCompleted(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), TaskStatusCompleted)
}

// PendingSteps returns the template's steps that no record of the entity
// decodes to. It is what makes a retried fire safe.
func (r *Reconstructor) PendingSteps(ctx context.Context, entityID, templateID string) ([]Step, error) {
	t, ok := r.registry.Get(templateID)
	if !ok {
		return nil, fmt.Errorf("template %q: %w", templateID, ErrNotFound)
	}
	records, err := r.repo.QueryByEntity(ctx, entityID, "")
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", entityID, err)
	}
	return pendingSteps(t, r.decodeAll(records)[t.ID]), nil
}

func pendingSteps(t Template, decoded []decodedRecord) []Step {
	materialized := map[string]bool{}
	for _, d := range decoded {
		materialized[d.ref.StepID] = true
	}
	out := []Step{}
	for _, s := range t.Steps {
		if !materialized[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// ActiveInstances reconstructs instances across all entities found in the
// most recent page of records and keeps the active ones.
func (r *Reconstructor) ActiveInstances(ctx context.Context) ([]Instance, error) {
	records, err := r.repo.QueryRecent(ctx, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	var order []string
	byEntity := map[string][]Record{}
	for _, rec := range records {
		if _, seen := byEntity[rec.EntityID]; !seen {
			order = append(order, rec.EntityID)
		}
		byEntity[rec.EntityID] = append(byEntity[rec.EntityID], rec)
	}
	out := []Instance{}
	for _, entityID := range order {
		for _, inst := range r.build(entityID, byEntity[entityID]) {
			if inst.Status == StatusActive {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

// Reconcile rewrites records identified through a legacy format with the
// structured prefix so later reads no longer depend on name matching.
func (r *Reconstructor) Reconcile(ctx context.Context, entityID string) (int, error) {
	rewriter, ok := r.repo.(DescriptionRewriter)
	if !ok {
		return 0, ErrUnsupported
	}
	records, err := r.repo.QueryByEntity(ctx, entityID, "")
	if err != nil {
		return 0, fmt.Errorf("query records for %s: %w", entityID, err)
	}
	var (
		rewritten int
		errs      []error
	)
	for _, rec := range records {
		ref, ok := r.codec.DecodeRecord(rec)
		if !ok || !ref.Legacy {
			continue
		}
		if err := rewriter.RewriteDescription(ctx, rec.ID, restructure(ref, rec.Description)); err != nil {
			errs = append(errs, fmt.Errorf("rewrite %s: %w", rec.ID, err))
			continue
		}
		rewritten++
		r.logger.Info("legacy workflow record restructured",
			zap.String("record_id", rec.ID),
			zap.String("entity_id", entityID),
			zap.String("template_id", ref.TemplateID),
			zap.String("step_id", ref.StepID))
	}
	return rewritten, errors.Join(errs...)
}

func earliest(decoded []decodedRecord) time.Time {
	var t time.Time
	for _, d := range decoded {
		if t.IsZero() || d.CreatedAt.Before(t) {
			t = d.CreatedAt
		}
	}
	return t
}
