package config

import (
	"github.com/SAP-F-2025/assessment-engine/internal/grading"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
)

// ManagerConfig maps the loaded settings onto the service layer.
func (c *Config) ManagerConfig() services.ManagerConfig {
	return services.ManagerConfig{
		Session: services.SessionConfig{
			TestQuestionCount: c.Session.TestQuestionCount,
			TestShuffle:       c.Session.TestShuffle,
			TestDuration:      c.Session.TestDuration,
			PracticeDuration:  c.Session.PracticeDuration,
			EvaluateOnFinish:  c.Grading.EvaluateOnFinish,
			AnalyticsSalt:     c.Session.AnalyticsSalt,
		},
		Evaluation: services.EvaluationConfig{
			Timeout: c.Grading.Timeout,
			Limits:  grading.DefaultLimits,
		},
		DispatchTimeout: c.Session.DispatchTimeout,
	}
}
