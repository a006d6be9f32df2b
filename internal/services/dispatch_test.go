package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestDispatcher_RecoversAndWaits(t *testing.T) {
	d := NewDispatcher(time.Second, testLogger())

	var ran atomic.Int32
	d.Go(context.Background(), "panics", func(context.Context) error {
		ran.Add(1)
		panic("boom")
	})
	d.Go(context.Background(), "fails", func(context.Context) error {
		ran.Add(1)
		return errors.New("broker down")
	})
	d.Go(context.Background(), "succeeds", func(context.Context) error {
		ran.Add(1)
		return nil
	})

	require.NotPanics(t, d.Wait)
	assert.Equal(t, int32(3), ran.Load())
}

func TestDispatcher_LogsRecoveredPanic(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(time.Second, slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-7")
	d.Go(ctx, "completion_event", func(context.Context) error {
		panic("nil publisher")
	})
	d.Wait()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "Panic recovered", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "completion_event", entry["operation"])
	assert.Equal(t, "nil publisher", entry["panic_value"])
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "dispatcher", entry["service"])
	assert.NotEmpty(t, entry["stack_trace"])
}

func TestDispatcher_DetachesFromCallerCancellation(t *testing.T) {
	d := NewDispatcher(time.Second, testLogger())

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))
	cancel()

	var (
		value  any
		ctxErr error
	)
	d.Go(parent, "detached", func(ctx context.Context) error {
		value = ctx.Value(ctxKey{})
		ctxErr = ctx.Err()
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})
	d.Wait()

	assert.Equal(t, "req-1", value)
	assert.NoError(t, ctxErr)
}
