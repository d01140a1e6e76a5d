package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func completeSteps(t *testing.T, e *engine, entityID string, stepIDs ...string) {
	t.Helper()
	want := map[string]bool{}
	for _, id := range stepIDs {
		want[id] = true
	}
	records, err := e.store.QueryByEntity(context.Background(), entityID, "")
	require.NoError(t, err)
	for _, r := range records {
		ref, ok := e.codec.DecodeRecord(r)
		if ok && want[ref.StepID] {
			require.NoError(t, e.store.SetStatus(context.Background(), r.ID, TaskStatusCompleted))
		}
	}
}

func TestInstancesTrackProgress(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	ctx := context.Background()
	e.dispatcher.Fire(ctx, TriggerEntityCreated, "hh_1", "Rivera Household", FireOptions{})

	instances, err := e.recon.Instances(ctx, "hh_1")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	inst := instances[0]
	assert.Equal(t, "client_onboarding", inst.TemplateID)
	assert.Equal(t, "Client Onboarding", inst.TemplateName)
	assert.Equal(t, "Rivera Household", inst.EntityName)
	assert.Equal(t, 6, inst.TotalSteps)
	assert.Equal(t, 0, inst.CurrentStepIndex)
	assert.Empty(t, inst.CompletedSteps)
	assert.Equal(t, StatusActive, inst.Status)
	assert.Equal(t, e.clock.Now(), inst.StartedAt)

	completeSteps(t, e, "hh_1", "onb_send_paperwork", "onb_welcome_call")
	instances, err = e.recon.Instances(ctx, "hh_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"onb_welcome_call", "onb_send_paperwork"}, instances[0].CompletedSteps)
	assert.Equal(t, 2, instances[0].CurrentStepIndex)
	assert.Equal(t, StatusActive, instances[0].Status)

	completeSteps(t, e, "hh_1", "onb_collect_documents", "onb_fund_accounts", "onb_two_week_checkin", "onb_ninety_day_review")
	instances, err = e.recon.Instances(ctx, "hh_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, instances[0].Status)
	assert.Equal(t, 6, instances[0].CurrentStepIndex)
}

func TestInstancesIgnoreUnrelatedRecordsAndCountDuplicatesOnce(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	ctx := context.Background()
	for _, r := range []Record{
		{EntityID: "hh_1", Subject: "Call about birthday", Description: "personal note", Status: TaskStatusCompleted},
		{EntityID: "hh_1", Subject: "Meeting: Log notes", Description: Describe("meeting_follow_up", "mtg_log_notes", ""), Status: "completed"},
		{EntityID: "hh_1", Subject: "Meeting: Log notes", Description: Describe("meeting_follow_up", "mtg_log_notes", ""), Status: TaskStatusCompleted},
		{EntityID: "hh_1", Subject: "Retired", Description: Describe("retired_flow", "gone", ""), Status: TaskStatusNotStarted},
	} {
		_, err := e.store.CreateOne(ctx, r)
		require.NoError(t, err)
	}

	instances, err := e.recon.Instances(ctx, "hh_1")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "meeting_follow_up", instances[0].TemplateID)
	assert.Equal(t, []string{"mtg_log_notes"}, instances[0].CompletedSteps)
	assert.Equal(t, 1, instances[0].CurrentStepIndex)
	assert.Equal(t, StatusActive, instances[0].Status)
}

func TestInstancesReportPausedForDisabledTemplate(t *testing.T) {
	onboarding := templateByID(t, "client_onboarding")
	onboarding.Enabled = false
	e := newEngine(t, []Template{onboarding})
	ctx := context.Background()
	_, err := e.store.CreateOne(ctx, Record{
		EntityID:    "hh_1",
		Subject:     "Onboarding: Welcome call",
		Description: Describe("client_onboarding", "onb_welcome_call", ""),
		Status:      TaskStatusNotStarted,
	})
	require.NoError(t, err)

	instances, err := e.recon.Instances(ctx, "hh_1")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, StatusPaused, instances[0].Status)
}

func TestInstancesForEntityWithoutRecords(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	instances, err := e.recon.Instances(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestPendingStepsUnknownTemplate(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	_, err := e.recon.PendingSteps(context.Background(), "hh_1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err := e.recon.PendingSteps(context.Background(), "hh_1", "document_filing")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestActiveInstancesAcrossEntities(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	ctx := context.Background()

	e.dispatcher.Fire(ctx, TriggerMeetingCompleted, "hh_done", "", FireOptions{})
	completeSteps(t, e, "hh_done", "mtg_log_notes", "mtg_send_recap")
	e.clock.Advance(time.Hour)
	e.dispatcher.Fire(ctx, TriggerDocumentCompleted, "hh_open", "", FireOptions{})
	e.clock.Advance(time.Hour)
	e.dispatcher.Fire(ctx, TriggerReviewCompleted, "hh_newest", "", FireOptions{})

	active, err := e.recon.ActiveInstances(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "hh_newest", active[0].EntityID)
	assert.Equal(t, "annual_review_follow_up", active[0].TemplateID)
	assert.Equal(t, "hh_open", active[1].EntityID)

	capped := NewReconstructor(e.store, e.registry, e.codec, zaptest.NewLogger(t), 3)
	active, err = capped.ActiveInstances(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "hh_newest", active[0].EntityID)
}

func TestReconcileRewritesLegacyRecords(t *testing.T) {
	e := newEngine(t, BuiltinTemplates)
	ctx := context.Background()
	legacy, err := e.store.CreateOne(ctx, Record{
		EntityID:    "hh_1",
		Subject:     "Welcome call",
		Description: "Workflow: Client Onboarding\nStep: Welcome call\nLeft a voicemail.",
		Status:      TaskStatusNotStarted,
	})
	require.NoError(t, err)
	structured, err := e.store.CreateOne(ctx, Record{
		EntityID:    "hh_1",
		Subject:     "Onboarding: Send account paperwork",
		Description: Describe("client_onboarding", "onb_send_paperwork", "body"),
		Status:      TaskStatusNotStarted,
	})
	require.NoError(t, err)

	pending, err := e.recon.PendingSteps(ctx, "hh_1", "client_onboarding")
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	n, err := e.recon.Reconcile(ctx, "hh_1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, _ := e.store.QueryByEntity(ctx, "hh_1", "")
	byID := map[string]Record{}
	for _, r := range records {
		byID[r.ID] = r
	}
	assert.Equal(t, "WORKFLOW_ID:client_onboarding STEP:onb_welcome_call\nLeft a voicemail.", byID[legacy.ID].Description)
	assert.Equal(t, structured.Description, byID[structured.ID].Description)

	n, err = e.recon.Reconcile(ctx, "hh_1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReconcileRequiresRewriter(t *testing.T) {
	reg, err := NewRegistry(BuiltinTemplates)
	require.NoError(t, err)
	recon := NewReconstructor(&mockRepo{}, reg, NewCodec(reg), zaptest.NewLogger(t), 0)
	_, err = recon.Reconcile(context.Background(), "hh_1")
	assert.ErrorIs(t, err, ErrUnsupported)
}
