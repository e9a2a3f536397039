package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkCollects(t *testing.T) {
	s := NewMemorySink()
	s.Record(StepEvent{TurnID: "t1", Step: "route", Outcome: OutcomeOK})
	s.Record(StepEvent{TurnID: "t1", Step: "retrieve", Outcome: OutcomeError, Detail: "retrieval_unavailable"})

	events := s.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "route", events[0].Step)
	assert.Equal(t, OutcomeError, events[1].Outcome)

	// Events returns a snapshot, not the live slice
	events[0].Step = "mutated"
	assert.Equal(t, "route", s.Events()[0].Step)
}

func TestLogSinkDropsWhenFull(t *testing.T) {
	// buffer of one with no drain running yet can still absorb records
	// without blocking the caller
	s := &LogSink{ch: make(chan StepEvent, 1), done: make(chan struct{})}
	for i := 0; i < 10; i++ {
		s.Record(StepEvent{TurnID: "t1", Step: "route"})
	}
	assert.Len(t, s.ch, 1)
}

func TestLogSinkCloseFlushes(t *testing.T) {
	s := NewLogSink(8)
	for i := 0; i < 5; i++ {
		s.Record(StepEvent{
			TurnID:           "t1",
			Step:             "route",
			Model:            "gpt-4o-mini",
			Latency:          10 * time.Millisecond,
			PromptTokens:     100,
			CompletionTokens: 20,
			Outcome:          OutcomeOK,
		})
	}

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
