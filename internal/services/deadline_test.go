package services

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDeadlinePolicy(t *testing.T) {
	clock := newFakeClock()
	policy := NewDeadlinePolicy(clock)
	session := &models.AssessmentSession{StartedAt: testStart, DeadlineAt: testStart.Add(20 * time.Minute)}

	assert.False(t, policy.Expired(session))
	assert.Equal(t, 20*time.Minute, policy.Remaining(session))
	assert.Equal(t, testStart, policy.FinishTime(session))

	clock.Advance(20*time.Minute - time.Second)
	assert.False(t, policy.Expired(session))
	assert.Equal(t, time.Second, policy.Remaining(session))

	clock.Advance(time.Second)
	assert.True(t, policy.Expired(session), "expired exactly at the deadline")
	assert.Zero(t, policy.Remaining(session))

	clock.Advance(time.Hour)
	assert.Equal(t, session.DeadlineAt, policy.FinishTime(session), "finish time never passes the deadline")

	session.IsCompleted = true
	assert.Zero(t, policy.Remaining(session))
}

func TestDeadlinePolicy_DefaultClock(t *testing.T) {
	policy := NewDeadlinePolicy(nil)
	assert.WithinDuration(t, time.Now(), policy.Now(), time.Second)
	assert.Equal(t, time.UTC, policy.Now().Location())
}
