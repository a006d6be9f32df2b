package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/grading"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories/memory"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var testStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockTier is a grading tier driven by testify expectations.
type mockTier struct {
	mock.Mock
}

func (m *mockTier) Name() string     { return "mock" }
func (m *mockTier) Configured() bool { return true }

func (m *mockTier) Grade(ctx context.Context, req grading.Request) (*grading.Outcome, error) {
	args := m.Called(ctx, req)
	outcome, _ := args.Get(0).(*grading.Outcome)
	return outcome, args.Error(1)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	repo      repositories.Repository
	clock     *fakeClock
	publisher *events.MockEventPublisher
	manager   ServiceManager
	sessions  SessionService

	q1, q2, inactive *models.AssessmentItem
	civilTask        *models.AssessmentItem
	criminalTask     *models.AssessmentItem
}

type fixtureOption func(*ManagerConfig)

func withQuestionCount(n int) fixtureOption {
	return func(c *ManagerConfig) { c.Session.TestQuestionCount = n }
}

func withoutEvaluateOnFinish() fixtureOption {
	return func(c *ManagerConfig) { c.Session.EvaluateOnFinish = false }
}

// newFixture seeds two active questions worth 1.22 and 2.16, one inactive
// question, a civil task with a valid rubric and a criminal task without one.
func newFixture(t *testing.T, tiers []grading.Tier, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	f := &fixture{
		t:         t,
		ctx:       ctx,
		repo:      memory.NewRepository(memory.NewStore()),
		clock:     newFakeClock(),
		publisher: events.NewMockEventPublisher(logger),
	}
	f.seedCatalog()

	if tiers == nil {
		tiers = []grading.Tier{grading.NewStubTier(true)}
	}
	config := ManagerConfig{
		Session: SessionConfig{
			TestQuestionCount: 2,
			TestShuffle:       false,
			TestDuration:      20 * time.Minute,
			PracticeDuration:  180 * time.Minute,
			EvaluateOnFinish:  true,
			AnalyticsSalt:     "salt",
		},
		Evaluation: DefaultEvaluationConfig(),
		Clock:      f.clock,
	}
	for _, opt := range opts {
		opt(&config)
	}

	f.manager = NewServiceManager(f.repo, grading.NewChain(logger, tiers...), f.publisher, validator.New(), config, logger)
	f.sessions = f.manager.Session()
	return f
}

func (f *fixture) seedCatalog() {
	catalog := f.repo.Catalog()

	question := func(number int, points string, active bool, correctIdx int) *models.AssessmentItem {
		item := &models.AssessmentItem{
			Number:     number,
			Text:       "Question " + points,
			TaskType:   models.TaskTypeLogical,
			Difficulty: models.DifficultyMedium,
			Points:     dec(points),
			IsActive:   active,
		}
		for i, text := range []string{"first", "second", "third"} {
			item.Options = append(item.Options, models.AnswerOption{Ordinal: i + 1, Text: text, IsCorrect: i == correctIdx})
		}
		_, err := catalog.UpsertQuestion(f.ctx, item)
		require.NoError(f.t, err)
		return item
	}
	f.q1 = question(1, "1.22", true, 0)
	f.q2 = question(2, "2.16", true, 2)
	f.inactive = question(3, "5.00", false, 1)

	f.civilTask = &models.AssessmentItem{
		Category: models.CategoryCivil,
		Title:    "Loan dispute",
		Points:   dec("30"),
		IsActive: true,
		Template: datatypes.NewJSONType(models.TaskTemplate{
			Intro:             "IN THE NAME OF THE STATE",
			Descriptive:       "The plaintiff claims repayment.",
			PartialMotivation: "Having heard the parties,",
		}),
		References: datatypes.NewJSONType(models.References{
			First: &models.Reference{Text: "First instance decision."},
		}),
	}
	_, err := catalog.UpsertTask(f.ctx, f.civilTask)
	require.NoError(f.t, err)

	rubric := testRubric()
	require.NoError(f.t, catalog.SaveRubric(f.ctx, rubric))
	_, err = catalog.AttachRubric(f.ctx, models.CategoryCivil, rubric.ID, nil)
	require.NoError(f.t, err)

	f.criminalTask = &models.AssessmentItem{
		Category: models.CategoryCriminal,
		Title:    "Theft",
		Points:   dec("30"),
		IsActive: true,
		Template: datatypes.NewJSONType(models.TaskTemplate{
			Facts:      "The accused took a bicycle.",
			ModelIntro: "SENTENCE",
		}),
	}
	_, err = catalog.UpsertTask(f.ctx, f.criminalTask)
	require.NoError(f.t, err)
}

func testRubric() *models.Rubric {
	return &models.Rubric{
		Name:          "civil",
		Version:       "v1",
		SchemaVersion: models.RubricSchemaVersion,
		Category:      models.CategoryCivil,
		TotalMax:      dec("30"),
		Groups: datatypes.NewJSONSlice([]models.RubricGroup{
			{Key: "structure", Title: "Structure", Max: dec("10"), Criteria: []models.RubricCriterion{
				{Key: "intro", Title: "Intro", Max: dec("4")},
				{Key: "order", Title: "Order", Max: dec("6")},
			}},
			{Key: "law", Title: "Law", Max: dec("20"), Criteria: []models.RubricCriterion{
				{Key: "norms", Title: "Norms", Max: dec("12")},
				{Key: "practice", Title: "Practice", Max: dec("8")},
			}},
		}),
	}
}

func (f *fixture) startTest() *SessionView {
	f.t.Helper()
	view, err := f.sessions.StartTest(f.ctx, &StartTestRequest{
		Participant: Participant{Name: "Olena", Age: 30},
		Client:      ClientInfo{UserAgent: "test-agent", IP: "10.0.0.1"},
	})
	require.NoError(f.t, err)
	return view
}

func (f *fixture) startPractice(category models.Category) *SessionView {
	f.t.Helper()
	view, err := f.sessions.StartPractice(f.ctx, &StartPracticeRequest{
		Participant: Participant{Name: "Taras", Age: 41},
		Category:    category,
	})
	require.NoError(f.t, err)
	return view
}

func (f *fixture) session(token string) *models.AssessmentSession {
	f.t.Helper()
	s, err := f.repo.Session().GetByToken(f.ctx, token, repositories.LockNone)
	require.NoError(f.t, err)
	return s
}

func optionID(item *models.AssessmentItem, correct bool) uint {
	for _, o := range item.Options {
		if o.IsCorrect == correct {
			return o.ID
		}
	}
	return 0
}

func ptrTo[T any](v T) *T { return &v }
