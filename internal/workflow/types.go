package workflow

import "time"

type TriggerEvent string

const (
	TriggerEntityCreated        TriggerEvent = "entity-created"
	TriggerDocumentSent         TriggerEvent = "document-sent"
	TriggerDocumentCompleted    TriggerEvent = "document-completed"
	TriggerReviewCompleted      TriggerEvent = "review-completed"
	TriggerMeetingCompleted     TriggerEvent = "meeting-completed"
	TriggerGenericTaskCompleted TriggerEvent = "generic-task-completed"
	TriggerScheduled            TriggerEvent = "scheduled"
)

var triggerEvents = map[TriggerEvent]bool{
	TriggerEntityCreated:        true,
	TriggerDocumentSent:         true,
	TriggerDocumentCompleted:    true,
	TriggerReviewCompleted:      true,
	TriggerMeetingCompleted:     true,
	TriggerGenericTaskCompleted: true,
	TriggerScheduled:            true,
}

// Valid reports whether e is one of the closed set of trigger events.
func (e TriggerEvent) Valid() bool {
	return triggerEvents[e]
}

type ConditionType string

const (
	ConditionTaskExists       ConditionType = "task_exists"
	ConditionTaskMissing      ConditionType = "task_missing"
	ConditionDaysSinceCreated ConditionType = "days_since_created"
)

// Condition gates a step on the state of the entity rather than on a delay.
type Condition struct {
	Type            ConditionType `json:"type" yaml:"type"`
	SubjectContains string        `json:"subject_contains,omitempty" yaml:"subject_contains,omitempty"`
	MinDays         int           `json:"min_days,omitempty" yaml:"min_days,omitempty"`
}

type Template struct {
	ID                     string       `json:"id" yaml:"id"`
	Name                   string       `json:"name" yaml:"name"`
	Description            string       `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger                TriggerEvent `json:"trigger" yaml:"trigger"`
	TriggerSubjectContains string       `json:"trigger_subject_contains,omitempty" yaml:"trigger_subject_contains,omitempty"`
	Steps                  []Step       `json:"steps" yaml:"steps"`
	Enabled                bool         `json:"enabled" yaml:"enabled"`
	// Reevaluate switches idempotency from template to step granularity so
	// condition-gated steps can fire over the entity's lifetime.
	Reevaluate bool `json:"reevaluate,omitempty" yaml:"reevaluate,omitempty"`
}

type Step struct {
	ID              string     `json:"id" yaml:"id"`
	Label           string     `json:"label" yaml:"label"`
	TaskSubject     string     `json:"task_subject" yaml:"task_subject"`
	TaskDescription string     `json:"task_description,omitempty" yaml:"task_description,omitempty"`
	TaskPriority    string     `json:"task_priority,omitempty" yaml:"task_priority,omitempty"`
	TaskStatus      string     `json:"task_status,omitempty" yaml:"task_status,omitempty"`
	DelayDays       int        `json:"delay_days" yaml:"delay_days"`
	Condition       *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// TemplateSummary is the read-only projection of a template used by listings.
type TemplateSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Trigger     TriggerEvent `json:"trigger"`
	StepCount   int          `json:"step_count"`
	Enabled     bool         `json:"enabled"`
}

// Record is a task in the external record store. Materialized workflow steps
// are records whose description starts with the correlation prefix.
type Record struct {
	ID             string     `json:"id"`
	EntityID       string     `json:"entity_id"`
	EntityName     string     `json:"entity_name,omitempty"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// BatchItem is the per-record outcome of a batch create.
type BatchItem struct {
	Record Record
	Err    error
}

type Instance struct {
	TemplateID       string    `json:"template_id"`
	TemplateName     string    `json:"template_name"`
	EntityID         string    `json:"entity_id"`
	EntityName       string    `json:"entity_name,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	CurrentStepIndex int       `json:"current_step_index"`
	CompletedSteps   []string  `json:"completed_steps"`
	TotalSteps       int       `json:"total_steps"`
	Status           string    `json:"status"`
}

// Entity identifies the business object workflows attach to.
type Entity struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type FireOptions struct {
	// SubjectContains selects between templates sharing a trigger.
	SubjectContains string
	// EntityCreatedAt feeds days_since_created conditions. Zero leaves them unmet.
	EntityCreatedAt time.Time
}

type FireResult struct {
	TriggeredTemplateNames []string `json:"triggered_template_names"`
	RecordsCreated         int      `json:"records_created"`
	Skipped                int      `json:"skipped"`
	Errors                 []string `json:"errors"`
}

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusPaused    = "paused"
)

const (
	TaskStatusNotStarted = "Not Started"
	TaskStatusCompleted  = "Completed"

	PriorityHigh   = "High"
	PriorityNormal = "Normal"
	PriorityLow    = "Low"
)
