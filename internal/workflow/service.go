package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Service is the entry point used by the HTTP and CLI surfaces.
type Service struct {
	registry   *Registry
	dispatcher *Dispatcher
	recon      *Reconstructor
	repo       Repository
	logger     *zap.Logger
}

func NewService(registry *Registry, dispatcher *Dispatcher, recon *Reconstructor, repo Repository, logger *zap.Logger) *Service {
	return &Service{registry: registry, dispatcher: dispatcher, recon: recon, repo: repo, logger: logger}
}

func (s *Service) ListTemplates() []TemplateSummary {
	return s.registry.List()
}

func (s *Service) GetTemplate(id string) (Template, error) {
	t, ok := s.registry.Get(id)
	if !ok {
		return Template{}, ErrNotFound
	}
	return t, nil
}

func (s *Service) Fire(ctx context.Context, event TriggerEvent, entityID, entityName string, opts FireOptions) FireResult {
	return s.dispatcher.Fire(ctx, event, entityID, entityName, opts)
}

// Instances renders an entity's workflow progress. When the entity's creation
// time is known, scheduled templates are evaluated first.
func (s *Service) Instances(ctx context.Context, entityID, entityName string, createdAt time.Time) ([]Instance, error) {
	if !createdAt.IsZero() {
		res := s.dispatcher.EvaluateScheduled(ctx, Entity{ID: entityID, Name: entityName, CreatedAt: createdAt})
		for _, e := range res.Errors {
			s.logger.Warn("scheduled evaluation error", zap.String("entity_id", entityID), zap.String("error", e))
		}
	}
	return s.recon.Instances(ctx, entityID)
}

func (s *Service) PendingSteps(ctx context.Context, entityID, templateID string) ([]Step, error) {
	return s.recon.PendingSteps(ctx, entityID, templateID)
}

func (s *Service) ActiveInstances(ctx context.Context) ([]Instance, error) {
	return s.recon.ActiveInstances(ctx)
}

func (s *Service) Reconcile(ctx context.Context, entityID string) (int, error) {
	return s.recon.Reconcile(ctx, entityID)
}

func (s *Service) Records(ctx context.Context, entityID string) ([]Record, error) {
	return s.repo.QueryByEntity(ctx, entityID, "")
}

// SetRecordStatus changes a task's status when the store allows it.
func (s *Service) SetRecordStatus(ctx context.Context, recordID, status string) error {
	u, ok := s.repo.(StatusUpdater)
	if !ok {
		return ErrUnsupported
	}
	return u.SetStatus(ctx, recordID, status)
}
