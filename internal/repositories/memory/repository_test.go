package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newSession(token string, itemIDs ...uint) *models.AssessmentSession {
	now := time.Now()
	return &models.AssessmentSession{
		Token:           token,
		Kind:            models.ExamKindTest,
		ParticipantName: "Ana",
		ParticipantAge:  30,
		ItemIDs:         datatypes.NewJSONSlice(itemIDs),
		DurationSeconds: 1200,
		StartedAt:       now,
		DeadlineAt:      now.Add(20 * time.Minute),
	}
}

func TestRepository_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	session := newSession("tok-1", 1, 2)
	require.NoError(t, repo.Session().Create(ctx, session))

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		ok, err := tx.Session().MarkCompleted(ctx, session.ID, time.Now(), decimal.NullDecimal{})
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Response().Upsert(ctx, &models.ResponseRecord{SessionID: session.ID, ItemID: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := repo.Session().GetByToken(ctx, "tok-1", repositories.LockNone)
	require.NoError(t, err)
	assert.False(t, stored.IsCompleted)

	records, err := repo.Response().GetBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_MarkCompletedOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())
	session := newSession("tok-2", 1)
	require.NoError(t, repo.Session().Create(ctx, session))

	first, err := repo.Session().MarkCompleted(ctx, session.ID, time.Now(), decimal.NewNullDecimal(decimal.NewFromInt(3)))
	require.NoError(t, err)
	second, err := repo.Session().MarkCompleted(ctx, session.ID, time.Now(), decimal.NewNullDecimal(decimal.NewFromInt(9)))
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)

	stored, err := repo.Session().GetByToken(ctx, "tok-2", repositories.LockNone)
	require.NoError(t, err)
	assert.True(t, stored.TotalScore.Decimal.Equal(decimal.NewFromInt(3)))
}

func TestRepository_ResponseUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	opt := uint(10)
	require.NoError(t, repo.Response().Upsert(ctx, &models.ResponseRecord{SessionID: 1, ItemID: 5, SelectedOptionID: &opt}))
	opt2 := uint(11)
	require.NoError(t, repo.Response().Upsert(ctx, &models.ResponseRecord{SessionID: 1, ItemID: 5, SelectedOptionID: &opt2, IsCorrect: true}))

	records, err := repo.Response().GetBySession(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint(11), *records[0].SelectedOptionID)
	assert.True(t, records[0].IsCorrect)
}

func TestRepository_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())
	session := newSession("tok-3", 1, 2, 3)
	require.NoError(t, repo.Session().Create(ctx, session))

	got, err := repo.Session().GetByToken(ctx, "tok-3", repositories.LockNone)
	require.NoError(t, err)
	got.ItemIDs[0] = 99
	got.IsCompleted = true

	again, err := repo.Session().GetByToken(ctx, "tok-3", repositories.LockNone)
	require.NoError(t, err)
	assert.Equal(t, uint(1), again.ItemIDs[0])
	assert.False(t, again.IsCompleted)
}

func TestCatalog_UpsertQuestionByNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	q := &models.AssessmentItem{Number: 1, Text: "first", Points: models.DefaultQuestionPoints, IsActive: true,
		Options: []models.AnswerOption{{Text: "a", IsCorrect: true}, {Text: "b"}}}
	created, err := repo.Catalog().UpsertQuestion(ctx, q)
	require.NoError(t, err)
	assert.True(t, created)

	q2 := &models.AssessmentItem{Number: 1, Text: "edited", Points: models.DefaultQuestionPoints, IsActive: true,
		Options: []models.AnswerOption{{Text: "c", IsCorrect: true}}}
	created, err = repo.Catalog().UpsertQuestion(ctx, q2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, q.ID, q2.ID)

	item, err := repo.Catalog().GetItem(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", item.Text)
	require.Len(t, item.Options, 1)
	assert.Equal(t, item.ID, item.Options[0].ItemID)
}

func TestCatalog_IsReferencedByActiveSession(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())
	session := newSession("tok-4", 7)
	require.NoError(t, repo.Session().Create(ctx, session))

	referenced, err := repo.Catalog().IsReferencedByActiveSession(ctx, 7)
	require.NoError(t, err)
	assert.True(t, referenced)

	_, err = repo.Session().MarkCompleted(ctx, session.ID, time.Now(), decimal.NullDecimal{})
	require.NoError(t, err)

	referenced, err = repo.Catalog().IsReferencedByActiveSession(ctx, 7)
	require.NoError(t, err)
	assert.False(t, referenced)
}

func TestRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewStore())

	_, err := repo.Session().GetByToken(ctx, "missing", repositories.LockNone)
	assert.True(t, repositories.IsNotFoundError(err))
	_, err = repo.Evaluation().GetBySession(ctx, 42)
	assert.True(t, repositories.IsNotFoundError(err))
}
