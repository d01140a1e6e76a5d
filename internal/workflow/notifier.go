package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier publishes workflow events to the audit log and event bus. It is
// best effort: posts run in the background, failures are logged and never
// reach the caller.
type Notifier struct {
	auditLog *endpoint
	eventBus *endpoint
	client   *http.Client
	logger   *zap.Logger
	inflight sync.WaitGroup
}

type endpoint struct {
	baseURL string
	timeout time.Duration
}

// FiredEvent describes the records a single template fire created.
type FiredEvent struct {
	TemplateID   string
	TemplateName string
	EntityID     string
	EntityName   string
	StepIDs      []string
}

func NewNotifier(auditURL, auditTimeout, eventURL, eventTimeout string, logger *zap.Logger) *Notifier {
	return &Notifier{
		auditLog: parseEndpoint(auditURL, auditTimeout),
		eventBus: parseEndpoint(eventURL, eventTimeout),
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
	}
}

// Fired returns immediately; the posts outlive ctx's cancellation.
func (n *Notifier) Fired(ctx context.Context, ev FiredEvent) {
	if n == nil || (n.auditLog == nil && n.eventBus == nil) {
		return
	}
	payload := map[string]any{
		"event":         "workflow.fired",
		"template_id":   ev.TemplateID,
		"template_name": ev.TemplateName,
		"entity_id":     ev.EntityID,
		"entity_name":   ev.EntityName,
		"step_ids":      ev.StepIDs,
		"ts":            time.Now().UTC().Format(time.RFC3339),
	}
	ctx = context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		n.postAudit(ctx, payload)
		n.postEventBus(ctx, payload)
	}()
}

// Close waits for in-flight notifications or until ctx is done.
func (n *Notifier) Close(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) postAudit(ctx context.Context, payload map[string]any) {
	if n.auditLog == nil {
		return
	}
	n.postJSON(ctx, n.auditLog, n.auditLog.baseURL+"/v1/events", payload)
}

func (n *Notifier) postEventBus(ctx context.Context, payload map[string]any) {
	if n.eventBus == nil {
		return
	}
	body := map[string]any{
		"topic":   payload["event"],
		"payload": payload,
	}
	n.postJSON(ctx, n.eventBus, n.eventBus.baseURL+"/v1/events", body)
}

func (n *Notifier) postJSON(ctx context.Context, ep *endpoint, url string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ep.timeout)
	defer cancel()
	raw, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		n.logger.Warn("build notification request", zap.String("url", url), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("notification failed", zap.String("url", url), zap.Error(err))
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		n.logger.Warn("notification rejected", zap.String("url", url), zap.Int("status", resp.StatusCode))
	}
}

func parseEndpoint(url, timeout string) *endpoint {
	if url == "" {
		return nil
	}
	dur, err := time.ParseDuration(timeout)
	if err != nil {
		dur = 5 * time.Second
	}
	return &endpoint{baseURL: url, timeout: dur}
}
