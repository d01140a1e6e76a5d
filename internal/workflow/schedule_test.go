package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDateUsesCalendarDays(t *testing.T) {
	ref := time.Date(2026, 2, 12, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, date(2026, 2, 12), DueDate(ref, 0))
	assert.Equal(t, date(2026, 3, 1), DueDate(ref, 17))
	assert.Equal(t, date(2026, 5, 13), DueDate(ref, 90))
	// Weekends are not skipped.
	assert.Equal(t, time.Saturday, DueDate(ref, 2).Weekday())
}

func TestCascadeDueDatesForOnboarding(t *testing.T) {
	onboarding := BuiltinTemplates[0]
	got := CascadeDueDates(time.Date(2026, 2, 12, 9, 0, 0, 0, time.UTC), onboarding.Steps)
	want := []time.Time{
		date(2026, 2, 12),
		date(2026, 2, 13),
		date(2026, 2, 15),
		date(2026, 2, 19),
		date(2026, 2, 26),
		date(2026, 5, 13),
	}
	assert.Equal(t, want, got)
}

func TestCascadeDueDatesConditionedStepsDueOnFireDate(t *testing.T) {
	steps := []Step{
		{ID: "a", DelayDays: 2},
		{ID: "b", Condition: &Condition{Type: ConditionTaskMissing, SubjectContains: "x"}},
		{ID: "c", DelayDays: 5},
	}
	got := CascadeDueDates(date(2026, 1, 30), steps)
	assert.Equal(t, []time.Time{date(2026, 2, 1), date(2026, 1, 30), date(2026, 2, 4)}, got)
}

func TestDaysSince(t *testing.T) {
	created := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysSince(created, time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, 1, DaysSince(created, time.Date(2026, 1, 2, 0, 5, 0, 0, time.UTC)))
	assert.Equal(t, 30, DaysSince(created, date(2026, 1, 31)))
	assert.Equal(t, 0, DaysSince(time.Time{}, date(2026, 1, 31)))
}

func TestConditionMet(t *testing.T) {
	now := date(2026, 6, 1)
	records := []Record{{Subject: "Draft Investment Policy Statement"}}

	assert.True(t, conditionMet(nil, nil, time.Time{}, now))
	assert.True(t, conditionMet(&Condition{Type: ConditionTaskExists, SubjectContains: "investment policy"}, records, time.Time{}, now))
	assert.False(t, conditionMet(&Condition{Type: ConditionTaskMissing, SubjectContains: "INVESTMENT POLICY"}, records, time.Time{}, now))
	assert.True(t, conditionMet(&Condition{Type: ConditionTaskMissing, SubjectContains: "Estate plan"}, records, time.Time{}, now))

	days := &Condition{Type: ConditionDaysSinceCreated, MinDays: 30}
	assert.False(t, conditionMet(days, nil, time.Time{}, now), "unknown creation date leaves the gate closed")
	assert.True(t, conditionMet(days, nil, date(2026, 5, 2), now))
	assert.False(t, conditionMet(days, nil, date(2026, 5, 3), now))
}
