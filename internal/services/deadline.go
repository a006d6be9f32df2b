package services

import (
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// Clock is the time source of the deadline policy.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// DeadlinePolicy decides expiry from stored timestamps on every access.
// There is no background timer.
type DeadlinePolicy struct {
	clock Clock
}

func NewDeadlinePolicy(clock Clock) *DeadlinePolicy {
	if clock == nil {
		clock = systemClock{}
	}
	return &DeadlinePolicy{clock: clock}
}

func (p *DeadlinePolicy) Now() time.Time {
	return p.clock.Now()
}

// Expired reports whether elapsed time has reached the session duration.
func (p *DeadlinePolicy) Expired(s *models.AssessmentSession) bool {
	return !p.Now().Before(s.DeadlineAt)
}

// Remaining is zero for completed or expired sessions.
func (p *DeadlinePolicy) Remaining(s *models.AssessmentSession) time.Duration {
	if s.IsCompleted {
		return 0
	}
	left := s.DeadlineAt.Sub(p.Now())
	if left < 0 {
		return 0
	}
	return left
}

// FinishTime is the finalize timestamp: now, but never past the deadline.
func (p *DeadlinePolicy) FinishTime(s *models.AssessmentSession) time.Time {
	now := p.Now()
	if now.After(s.DeadlineAt) {
		return s.DeadlineAt
	}
	return now
}
