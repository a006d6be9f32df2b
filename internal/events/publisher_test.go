package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventPublisher_ConcurrentPublish(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = publisher.Publish(context.Background(), NewSessionCompletedEvent(models.CompletionSnapshot{SessionToken: "t"}))
		}()
	}
	wg.Wait()

	assert.Len(t, publisher.GetPublishedEvents(), 20)
	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
}

func TestNewSessionCompletedEvent(t *testing.T) {
	finished := time.Date(2025, 3, 1, 10, 20, 0, 0, time.UTC)
	snapshot := models.CompletionSnapshot{
		SessionToken:    "abc",
		Kind:            models.ExamKindTest,
		ParticipantName: "Ana",
		ParticipantAge:  30,
		TotalScore:      decimal.NewNullDecimal(decimal.RequireFromString("3.38")),
		QuestionCount:   30,
		FinishedAt:      finished,
	}

	event := NewSessionCompletedEvent(snapshot)

	assert.Equal(t, EventSessionCompleted, event.Type)
	assert.Equal(t, "assessment-engine", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.NotEqual(t, event.ID, NewSessionCompletedEvent(snapshot).ID)

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			SessionToken string `json:"session_token"`
			TotalScore   string `json:"total_score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "session.completed", decoded.Type)
	assert.Equal(t, "abc", decoded.Data.SessionToken)
	assert.Equal(t, "3.38", decoded.Data.TotalScore)
}

func TestMockEventPublisher_Err(t *testing.T) {
	publisher := NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	publisher.Err = assert.AnError

	err := publisher.Publish(context.Background(), NewSessionCompletedEvent(models.CompletionSnapshot{}))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, publisher.GetPublishedEvents())
}
