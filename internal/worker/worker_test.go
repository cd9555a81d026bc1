package worker

import (
	"context"
	"testing"
	"time"

	"quizforge/internal/config"
	"quizforge/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker() *Worker {
	return NewWorker(nil, "test", config.NewDefaultConfig(), observability.NewLogger(nil))
}

func TestNewWorker_DefaultInstance(t *testing.T) {
	w := NewWorker(nil, "", config.NewDefaultConfig(), observability.NewLogger(nil))
	assert.Equal(t, "default", w.instance)
}

func TestGetStatus_Initial(t *testing.T) {
	w := newTestWorker()

	status := w.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Zero(t, status.TotalSwept)
	assert.Empty(t, status.LastRunError)
}

func TestTriggerManualRun_Coalesces(t *testing.T) {
	w := newTestWorker()

	// A second trigger while one is pending must not block
	w.TriggerManualRun()
	w.TriggerManualRun()

	assert.Len(t, w.manualTrigger, 1)
}

func TestRecordRunHistory_TrimsToLimit(t *testing.T) {
	w := newTestWorker()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < maxRunHistory+10; i++ {
		w.mu.Lock()
		w.status.LastRunStart = start.Add(time.Duration(i) * time.Minute)
		w.status.LastRunFinish = w.status.LastRunStart.Add(time.Second)
		w.mu.Unlock()
		w.recordRunHistory(i, nil)
	}

	history := w.GetHistory()
	require.Len(t, history, maxRunHistory)
	// Oldest entries were dropped
	assert.Equal(t, 10, history[0].SweptRows)
	assert.Equal(t, "Success", history[0].Status)
}

func TestShutdown_BeforeStartIsNoop(t *testing.T) {
	w := newTestWorker()

	require.NoError(t, w.Shutdown(context.Background()))
}

func TestRecordRunHistory_FailureStatus(t *testing.T) {
	w := newTestWorker()

	w.recordRunHistory(0, assert.AnError)

	history := w.GetHistory()
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Status, "Failure")
}
