package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplates = `
templates:
  - id: tax_season
    name: Tax Season Prep
    trigger: generic-task-completed
    trigger_subject_contains: Tax
    enabled: true
    steps:
      - id: tax_request_docs
        label: Request tax documents
        task_subject: "Tax: Request documents"
        task_priority: High
        delay_days: 0
      - id: tax_follow_up
        label: Follow up
        task_subject: "Tax: Follow up"
        delay_days: 14
  - id: dormant_check
    name: Dormant Check
    trigger: scheduled
    reevaluate: true
    enabled: true
    steps:
      - id: dormant_call
        label: Dormant call
        task_subject: "Dormant: Call"
        condition:
          type: days_since_created
          min_days: 400
`

func TestParseTemplates(t *testing.T) {
	templates, err := ParseTemplates([]byte(sampleTemplates))
	require.NoError(t, err)
	require.Len(t, templates, 2)

	assert.Equal(t, "tax_season", templates[0].ID)
	assert.Equal(t, TriggerGenericTaskCompleted, templates[0].Trigger)
	assert.Equal(t, "Tax", templates[0].TriggerSubjectContains)
	assert.Equal(t, 14, templates[0].Steps[1].DelayDays)
	require.NotNil(t, templates[1].Steps[0].Condition)
	assert.Equal(t, ConditionDaysSinceCreated, templates[1].Steps[0].Condition.Type)
	assert.Equal(t, 400, templates[1].Steps[0].Condition.MinDays)
	assert.True(t, templates[1].Reevaluate)

	_, err = NewRegistry(templates)
	assert.NoError(t, err)
}

func TestParseTemplatesRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown trigger": `
templates:
  - id: a
    name: A
    trigger: contract-signed
    steps: [{id: s, label: S, task_subject: S}]
`,
		"missing steps": `
templates:
  - id: a
    name: A
    trigger: entity-created
`,
		"negative delay": `
templates:
  - id: a
    name: A
    trigger: entity-created
    steps: [{id: s, label: S, task_subject: S, delay_days: -2}]
`,
		"unknown field": `
templates:
  - id: a
    name: A
    trigger: entity-created
    owner: ops
    steps: [{id: s, label: S, task_subject: S}]
`,
		"template id with whitespace": `
templates:
  - id: client onboarding
    name: A
    trigger: entity-created
    steps: [{id: s, label: S, task_subject: S}]
`,
		"step id with whitespace": `
templates:
  - id: a
    name: A
    trigger: entity-created
    steps: [{id: welcome call, label: S, task_subject: S}]
`,
		"no templates key": `
workflows: []
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTemplates([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestParseTemplatesBadYAML(t *testing.T) {
	_, err := ParseTemplates([]byte("templates: [\n"))
	assert.Error(t, err)
}

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTemplates), 0o600))

	templates, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Len(t, templates, 2)

	_, err = LoadTemplates(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
