package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDueDate_ExtendsFutureDueDate(t *testing.T) {
	cycle := 30 * day
	for _, ahead := range []time.Duration{time.Second, time.Hour, 3 * day, 29 * day, 400 * day} {
		current := testNow.Add(ahead)
		got := NextDueDate(&current, testNow, cycle)
		assert.Equal(t, current.Add(cycle), got, "ahead=%s", ahead)
	}
}

func TestNextDueDate_ResetsFromNow(t *testing.T) {
	cycle := 30 * day
	want := testNow.Add(cycle)

	assert.Equal(t, want, NextDueDate(nil, testNow, cycle))

	for _, behind := range []time.Duration{0, time.Second, 2 * day, 365 * day} {
		current := testNow.Add(-behind)
		assert.Equal(t, want, NextDueDate(&current, testNow, cycle), "behind=%s", behind)
	}
}

func TestNextDueDate_ReturnsUTC(t *testing.T) {
	sp := time.FixedZone("BRT", -3*3600)
	got := NextDueDate(nil, testNow.In(sp), 30*day)
	assert.Equal(t, time.UTC, got.Location())
}

func TestTrialDueDate(t *testing.T) {
	p := DefaultBillingPolicy()
	assert.Nil(t, p.TrialDueDate(testNow))

	p.TrialDays = 7
	due := p.TrialDueDate(testNow)
	if assert.NotNil(t, due) {
		assert.Equal(t, testNow.Add(7*day), *due)
	}
}
