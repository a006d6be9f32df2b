package models

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Rubric{},
		&AssessmentItem{},
		&AnswerOption{},
		&AssessmentSession{},
		&ResponseRecord{},
		&EvaluationRecord{},
	}
}
