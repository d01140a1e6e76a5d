package workflow

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	workflowIDTag = "WORKFLOW_ID:"
	stepTag       = "STEP:"
)

// StepRef is the decoded identity of a materialized step.
type StepRef struct {
	TemplateID string
	StepID     string
	// Legacy is set when identity came from a fallback format rather than the
	// structured prefix.
	Legacy bool
}

// decoder is one link of the decode chain.
type decoder interface {
	decode(r Record) (StepRef, bool)
}

// Codec maps step identity to and from a record's free-text description.
// Decoding never fails loudly: anything unrecognised is "not a workflow record".
type Codec struct {
	chain []decoder
}

func NewCodec(registry *Registry) *Codec {
	return &Codec{
		chain: []decoder{
			structuredDecoder{},
			newLegacyDecoder(registry),
			newSubjectDecoder(registry),
		},
	}
}

// Encode returns the correlation prefix for a step. The format is scraped by
// external tools; changing it is a breaking change.
func Encode(templateID, stepID string) string {
	return workflowIDTag + templateID + " " + stepTag + stepID
}

// Describe builds a full record description: prefix line, then free text.
func Describe(templateID, stepID, body string) string {
	prefix := Encode(templateID, stepID)
	if body == "" {
		return prefix
	}
	return prefix + "\n" + body
}

// Decode reads identity from description text alone.
func (c *Codec) Decode(text string) (StepRef, bool) {
	return c.DecodeRecord(Record{Description: text})
}

// DecodeRecord runs the full chain, including the subject fallback.
func (c *Codec) DecodeRecord(r Record) (StepRef, bool) {
	for _, d := range c.chain {
		if ref, ok := d.decode(r); ok {
			return ref, true
		}
	}
	return StepRef{}, false
}

type structuredDecoder struct{}

var structuredPattern = regexp.MustCompile(`^\s*WORKFLOW_ID:(\S+)\s+STEP:(\S+)`)

func (d structuredDecoder) decode(r Record) (StepRef, bool) {
	m := structuredPattern.FindStringSubmatch(r.Description)
	if m == nil {
		return StepRef{}, false
	}
	// The prefix is authoritative even for steps no longer in the catalog.
	return StepRef{TemplateID: m[1], StepID: m[2]}, true
}

var (
	legacyWorkflowLine = regexp.MustCompile(`(?m)^\s*Workflow:\s*(.+?)\s*$`)
	legacyStepLine     = regexp.MustCompile(`(?m)^\s*Step:\s*(.+?)\s*$`)
)

// legacyDecoder resolves the human-readable "Workflow: <name>" / "Step: <label>"
// lines written before the structured prefix existed. Names that match more
// than one template or step are ambiguous and decode to nothing.
type legacyDecoder struct {
	byName map[string][]Template
}

func newLegacyDecoder(registry *Registry) legacyDecoder {
	d := legacyDecoder{byName: map[string][]Template{}}
	for _, t := range registry.templates {
		d.byName[t.Name] = append(d.byName[t.Name], t)
	}
	return d
}

func (d legacyDecoder) decode(r Record) (StepRef, bool) {
	wm := legacyWorkflowLine.FindStringSubmatch(r.Description)
	sm := legacyStepLine.FindStringSubmatch(r.Description)
	if wm == nil || sm == nil {
		return StepRef{}, false
	}
	candidates := d.byName[wm[1]]
	if len(candidates) != 1 {
		return StepRef{}, false
	}
	t := candidates[0]
	var found *Step
	for i := range t.Steps {
		if t.Steps[i].Label != sm[1] {
			continue
		}
		if found != nil {
			return StepRef{}, false
		}
		found = &t.Steps[i]
	}
	if found == nil {
		return StepRef{}, false
	}
	return StepRef{TemplateID: t.ID, StepID: found.ID, Legacy: true}, true
}

// subjectDecoder is the last resort: a record whose subject equals exactly one
// step's task subject across the whole catalog.
type subjectDecoder struct {
	bySubject map[string][]stepLocation
	registry  *Registry
}

func newSubjectDecoder(registry *Registry) subjectDecoder {
	d := subjectDecoder{bySubject: map[string][]stepLocation{}, registry: registry}
	for ti, t := range registry.templates {
		for si, s := range t.Steps {
			d.bySubject[s.TaskSubject] = append(d.bySubject[s.TaskSubject], stepLocation{template: ti, step: si})
		}
	}
	return d
}

func (d subjectDecoder) decode(r Record) (StepRef, bool) {
	if r.Subject == "" || strings.Contains(r.Description, workflowIDTag) {
		return StepRef{}, false
	}
	locs := d.bySubject[strings.TrimSpace(r.Subject)]
	if len(locs) != 1 {
		return StepRef{}, false
	}
	t := d.registry.templates[locs[0].template]
	return StepRef{TemplateID: t.ID, StepID: t.Steps[locs[0].step].ID, Legacy: true}, true
}

// restructure replaces a legacy description with the structured prefix,
// keeping any free text that followed the legacy header lines.
func restructure(ref StepRef, description string) string {
	var body []string
	for _, line := range strings.Split(description, "\n") {
		if legacyWorkflowLine.MatchString(line) || legacyStepLine.MatchString(line) {
			continue
		}
		body = append(body, line)
	}
	return Describe(ref.TemplateID, ref.StepID, strings.TrimSpace(strings.Join(body, "\n")))
}

func (r StepRef) String() string {
	return fmt.Sprintf("%s/%s", r.TemplateID, r.StepID)
}
