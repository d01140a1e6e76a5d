package workflow

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidTemplate = errors.New("invalid workflow template")

// Registry is the immutable template catalog. It is built once at startup and
// is safe for concurrent readers.
type Registry struct {
	templates []Template
	byID      map[string]int
	steps     map[string]stepLocation
}

type stepLocation struct {
	template int
	step     int
}

// NewRegistry validates templates and indexes them. Any problem is a
// configuration error and should abort startup.
func NewRegistry(templates []Template) (*Registry, error) {
	r := &Registry{
		templates: make([]Template, 0, len(templates)),
		byID:      map[string]int{},
		steps:     map[string]stepLocation{},
	}
	for _, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, err
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrInvalidTemplate, t.ID)
		}
		ti := len(r.templates)
		for si, s := range t.Steps {
			if loc, dup := r.steps[s.ID]; dup {
				return nil, fmt.Errorf("%w: step id %q in %q already used by template %q",
					ErrInvalidTemplate, s.ID, t.ID, r.templates[loc.template].ID)
			}
			r.steps[s.ID] = stepLocation{template: ti, step: si}
		}
		r.byID[t.ID] = ti
		r.templates = append(r.templates, cloneTemplate(t))
	}
	return r, nil
}

func validateTemplate(t Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: template id is required", ErrInvalidTemplate)
	}
	if hasSpace(t.ID) {
		return fmt.Errorf("%w: template id %q contains whitespace", ErrInvalidTemplate, t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template %q has no name", ErrInvalidTemplate, t.ID)
	}
	if !t.Trigger.Valid() {
		return fmt.Errorf("%w: template %q has unknown trigger %q", ErrInvalidTemplate, t.ID, t.Trigger)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("%w: template %q has no steps", ErrInvalidTemplate, t.ID)
	}
	prevDelay := 0
	for _, s := range t.Steps {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("%w: template %q has a step without id", ErrInvalidTemplate, t.ID)
		}
		if hasSpace(s.ID) {
			return fmt.Errorf("%w: step id %q contains whitespace", ErrInvalidTemplate, s.ID)
		}
		if strings.TrimSpace(s.Label) == "" || strings.TrimSpace(s.TaskSubject) == "" {
			return fmt.Errorf("%w: step %q needs a label and task subject", ErrInvalidTemplate, s.ID)
		}
		if s.DelayDays < 0 {
			return fmt.Errorf("%w: step %q has negative delay", ErrInvalidTemplate, s.ID)
		}
		if s.Condition != nil {
			if err := validateCondition(s.ID, *s.Condition); err != nil {
				return err
			}
			continue
		}
		// Delays are offsets on the fire date, so each gap to the previous
		// step must be non-negative.
		if s.DelayDays < prevDelay {
			return fmt.Errorf("%w: step %q delay %d precedes previous step delay %d",
				ErrInvalidTemplate, s.ID, s.DelayDays, prevDelay)
		}
		prevDelay = s.DelayDays
	}
	return nil
}

// hasSpace reports whether an id would break the whitespace-delimited
// correlation prefix.
func hasSpace(id string) bool {
	return strings.IndexFunc(id, unicode.IsSpace) >= 0
}

func validateCondition(stepID string, c Condition) error {
	switch c.Type {
	case ConditionTaskExists, ConditionTaskMissing:
		if strings.TrimSpace(c.SubjectContains) == "" {
			return fmt.Errorf("%w: step %q condition %s needs subject_contains", ErrInvalidTemplate, stepID, c.Type)
		}
	case ConditionDaysSinceCreated:
		if c.MinDays < 0 {
			return fmt.Errorf("%w: step %q condition has negative min_days", ErrInvalidTemplate, stepID)
		}
	default:
		return fmt.Errorf("%w: step %q has unknown condition type %q", ErrInvalidTemplate, stepID, c.Type)
	}
	return nil
}

func cloneTemplate(t Template) Template {
	steps := make([]Step, len(t.Steps))
	for i, s := range t.Steps {
		if s.Condition != nil {
			c := *s.Condition
			s.Condition = &c
		}
		steps[i] = s
	}
	t.Steps = steps
	return t
}

// List returns the read-only projection of every template in catalog order.
func (r *Registry) List() []TemplateSummary {
	out := make([]TemplateSummary, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, TemplateSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Trigger:     t.Trigger,
			StepCount:   len(t.Steps),
			Enabled:     t.Enabled,
		})
	}
	return out
}

func (r *Registry) Get(id string) (Template, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, false
	}
	return cloneTemplate(r.templates[i]), true
}

// Templates returns copies of all templates in catalog order.
func (r *Registry) Templates() []Template {
	out := make([]Template, len(r.templates))
	for i, t := range r.templates {
		out[i] = cloneTemplate(t)
	}
	return out
}

// Step resolves a globally unique step id to its template and definition.
func (r *Registry) Step(stepID string) (Template, Step, bool) {
	loc, ok := r.steps[stepID]
	if !ok {
		return Template{}, Step{}, false
	}
	t := r.templates[loc.template]
	return t, t.Steps[loc.step], true
}

// Matching returns enabled templates for event, honoring the subject
// discriminator of templates that share a trigger.
func (r *Registry) Matching(event TriggerEvent, subjectContains string) []Template {
	var out []Template
	for _, t := range r.templates {
		if !t.Enabled || t.Trigger != event {
			continue
		}
		if t.TriggerSubjectContains != "" && !strings.Contains(subjectContains, t.TriggerSubjectContains) {
			continue
		}
		out = append(out, cloneTemplate(t))
	}
	return out
}
