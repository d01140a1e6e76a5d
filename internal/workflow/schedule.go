package workflow

import (
	"strings"
	"time"
)

const day = 24 * time.Hour

// DueDate adds delayDays calendar days to the calendar date of ref. There is
// no business-day logic; the result is midnight in ref's location.
func DueDate(ref time.Time, delayDays int) time.Time {
	y, m, d := ref.Date()
	return time.Date(y, m, d+delayDays, 0, 0, 0, 0, ref.Location())
}

// CascadeDueDates computes due dates for the delay-driven steps of a template
// fired at ref. Each step is anchored on the previous step's due date and
// advanced by the gap between the two steps' delays, so a step's delay is its
// offset from the fire date. Condition-gated steps are due on ref's date and
// do not move the anchor.
func CascadeDueDates(ref time.Time, steps []Step) []time.Time {
	out := make([]time.Time, len(steps))
	anchor := DueDate(ref, 0)
	prevDelay := 0
	for i, s := range steps {
		if s.Condition != nil {
			out[i] = DueDate(ref, 0)
			continue
		}
		anchor = DueDate(anchor, s.DelayDays-prevDelay)
		prevDelay = s.DelayDays
		out[i] = anchor
	}
	return out
}

// DaysSince counts whole calendar days from created to now.
func DaysSince(created, now time.Time) int {
	if created.IsZero() {
		return 0
	}
	from := DueDate(created.In(now.Location()), 0)
	to := DueDate(now, 0)
	return int(to.Sub(from).Round(day) / day)
}

// conditionMet evaluates a step's gate against the entity's records.
func conditionMet(c *Condition, records []Record, entityCreatedAt, now time.Time) bool {
	if c == nil {
		return true
	}
	switch c.Type {
	case ConditionDaysSinceCreated:
		if entityCreatedAt.IsZero() {
			return false
		}
		return DaysSince(entityCreatedAt, now) >= c.MinDays
	case ConditionTaskExists:
		return hasSubject(records, c.SubjectContains)
	case ConditionTaskMissing:
		return !hasSubject(records, c.SubjectContains)
	default:
		return false
	}
}

func hasSubject(records []Record, fragment string) bool {
	needle := strings.ToLower(fragment)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Subject), needle) {
			return true
		}
	}
	return false
}
