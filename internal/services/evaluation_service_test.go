package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/grading"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestEvaluation_FailedThenRetried(t *testing.T) {
	tier := &mockTier{}
	tier.On("Grade", mock.Anything, mock.Anything).Return(nil, errors.New("upstream unavailable")).Once()
	tier.On("Grade", mock.Anything, mock.MatchedBy(func(req grading.Request) bool {
		return req.Rubric != nil && req.Rubric.Category == models.CategoryCivil
	})).Return(&grading.Outcome{
		Grader: "mock-model",
		Raw: &grading.RawResult{
			Feedback: "Solid reasoning.",
			Groups: []grading.RawGroup{
				{Key: "structure", Criteria: []grading.RawCriterion{
					{Key: "intro", Score: decPtr("9")},
					{Key: "order", Score: decPtr("-1")},
				}},
				{Key: "law", Score: decPtr("25")},
			},
		},
	}, nil).Once()

	f := newFixture(t, []grading.Tier{tier})
	view := f.startPractice(models.CategoryCivil)

	result, err := f.sessions.Finish(f.ctx, view.Token, &FinishRequest{Motivation: ptrTo("Motivation text.")})
	require.NoError(t, err, "a failed evaluation does not fail the finish")
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, models.EvaluationFailed, result.Evaluation.Status)
	assert.Equal(t, 1, result.Evaluation.Attempts)
	assert.True(t, result.Evaluation.RetryAllowed)
	assert.Contains(t, result.Evaluation.FailureReason, "upstream unavailable")
	assert.False(t, result.TotalScore.Valid)

	f.clock.Advance(time.Minute)
	ev, err := f.sessions.Evaluate(f.ctx, view.Token)
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationDone, ev.Status)
	assert.Equal(t, 2, ev.Attempts)
	assert.Equal(t, "mock-model", ev.Grader)
	assert.Empty(t, ev.FailureReason)
	assert.Equal(t, "24", ev.Total.Decimal.String())

	groups := ev.Scores.Groups
	require.Len(t, groups, 2)
	assert.Equal(t, "4", groups[0].Score.String())
	assert.Equal(t, "4", groups[0].Criteria[0].Score.String())
	assert.True(t, groups[0].Criteria[1].Score.IsZero())
	assert.Equal(t, "20", groups[1].Score.String())
	assert.Equal(t, "30", ev.Scores.Rubric.TotalMax.String())

	stored, err := f.sessions.EvaluationResult(f.ctx, view.Token)
	require.NoError(t, err)
	assert.Equal(t, ev.Total, stored.Total)
	assert.Equal(t, "24", f.session(view.Token).TotalScore.Decimal.String())

	tier.AssertNumberOfCalls(t, "Grade", 2)
}

func TestEvaluation_MissingRubricFails(t *testing.T) {
	f := newFixture(t, nil)
	view := f.startPractice(models.CategoryCriminal)

	result, err := f.sessions.Finish(f.ctx, view.Token, &FinishRequest{Resolution: ptrTo("Guilty.")})
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationFailed, result.Evaluation.Status)
	assert.Equal(t, "SENTENCE\n\nGuilty.", result.Document)

	ev, err := f.sessions.Evaluate(f.ctx, view.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationFailed)
	assert.ErrorIs(t, err, ErrRubricMissing)

	var failed *EvaluationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, ev, failed.Evaluation)
	assert.Equal(t, 2, ev.Attempts)
	assert.Equal(t, models.EvaluationFailed, ev.Status)
}

func TestEvaluation_PendingWhenNotRunOnFinish(t *testing.T) {
	f := newFixture(t, nil, withoutEvaluateOnFinish())
	view := f.startPractice(models.CategoryCivil)

	_, err := f.sessions.Finish(f.ctx, view.Token, nil)
	require.NoError(t, err)

	ev, err := f.sessions.EvaluationResult(f.ctx, view.Token)
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationPending, ev.Status)
	assert.Equal(t, 1, ev.Attempts)
	assert.False(t, ev.RetryAllowed)
	assert.False(t, ev.Total.Valid)

	ev, err = f.sessions.Evaluate(f.ctx, view.Token)
	require.NoError(t, err)
	assert.Equal(t, models.EvaluationDone, ev.Status)
	assert.Equal(t, "21", ev.Total.Decimal.String())
}

// faultyRepository injects storage failures into the catalog and evaluation stores.
type faultyRepository struct {
	repositories.Repository
	rubricErr error
	doneErr   error
}

func (r *faultyRepository) Catalog() repositories.CatalogRepository {
	return faultyCatalog{CatalogRepository: r.Repository.Catalog(), err: r.rubricErr}
}

func (r *faultyRepository) Evaluation() repositories.EvaluationRepository {
	return faultyEvaluations{EvaluationRepository: r.Repository.Evaluation(), doneErr: r.doneErr}
}

type faultyCatalog struct {
	repositories.CatalogRepository
	err error
}

func (c faultyCatalog) GetRubric(ctx context.Context, id uint) (*models.Rubric, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.CatalogRepository.GetRubric(ctx, id)
}

type faultyEvaluations struct {
	repositories.EvaluationRepository
	doneErr error
}

func (e faultyEvaluations) Save(ctx context.Context, ev *models.EvaluationRecord) error {
	if e.doneErr != nil && ev.Status == models.EvaluationDone {
		return e.doneErr
	}
	return e.EvaluationRepository.Save(ctx, ev)
}

func TestEvaluation_StorageFailuresResolveToFailed(t *testing.T) {
	tests := []struct {
		name   string
		repo   func(repositories.Repository) repositories.Repository
		reason string
	}{
		{
			name: "rubric load fails",
			repo: func(r repositories.Repository) repositories.Repository {
				return &faultyRepository{Repository: r, rubricErr: errors.New("connection reset by peer")}
			},
			reason: "failed to load rubric: connection reset by peer",
		},
		{
			name: "done record cannot be stored",
			repo: func(r repositories.Repository) repositories.Repository {
				return &faultyRepository{Repository: r, doneErr: errors.New("disk full")}
			},
			reason: "failed to store evaluation: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, withoutEvaluateOnFinish())
			view := f.startPractice(models.CategoryCivil)
			_, err := f.sessions.Finish(f.ctx, view.Token, nil)
			require.NoError(t, err)

			config := ManagerConfig{
				Session:    SessionConfig{TestQuestionCount: 2, TestDuration: 20 * time.Minute, PracticeDuration: 180 * time.Minute},
				Evaluation: DefaultEvaluationConfig(),
				Clock:      f.clock,
			}
			manager := NewServiceManager(tt.repo(f.repo), grading.NewChain(testLogger(), grading.NewStubTier(true)),
				f.publisher, validator.New(), config, testLogger())

			ev, err := manager.Session().Evaluate(f.ctx, view.Token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEvaluationFailed)
			require.NotNil(t, ev)
			assert.Equal(t, models.EvaluationFailed, ev.Status)
			assert.True(t, ev.RetryAllowed)

			stored, err := f.sessions.EvaluationResult(f.ctx, view.Token)
			require.NoError(t, err)
			assert.Equal(t, models.EvaluationFailed, stored.Status)
			assert.Equal(t, 2, stored.Attempts)
			assert.Contains(t, stored.FailureReason, tt.reason)
			assert.False(t, stored.Total.Valid)
		})
	}
}

func TestEvaluation_Preconditions(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("active session", func(t *testing.T) {
		view := f.startPractice(models.CategoryCivil)
		_, err := f.sessions.Evaluate(f.ctx, view.Token)
		assert.ErrorIs(t, err, ErrSessionActive)
		_, err = f.sessions.EvaluationResult(f.ctx, view.Token)
		assert.ErrorIs(t, err, ErrSessionActive)
	})

	t.Run("test session", func(t *testing.T) {
		view := f.startTest()
		_, err := f.sessions.Finalize(f.ctx, view.Token)
		require.NoError(t, err)
		_, err = f.sessions.Evaluate(f.ctx, view.Token)
		assert.ErrorIs(t, err, ErrWrongExamKind)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.sessions.Evaluate(f.ctx, "nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("expired session is finalized first", func(t *testing.T) {
		view := f.startPractice(models.CategoryCivil)
		f.clock.Advance(3 * time.Hour)
		ev, err := f.sessions.EvaluationResult(f.ctx, view.Token)
		require.NoError(t, err)
		assert.Equal(t, models.EvaluationDone, ev.Status)
		assert.True(t, f.session(view.Token).IsCompleted)
	})
}

func TestAuditJSON(t *testing.T) {
	assert.Nil(t, auditJSON(nil))
	assert.JSONEq(t, `{"total": 3}`, string(auditJSON([]byte(`{"total": 3}`))))
	assert.JSONEq(t, `{"content": "not json"}`, string(auditJSON([]byte("not json"))))
}
