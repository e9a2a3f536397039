// Package telemetry records per-step latency, token usage and outcomes.
// Sinks are write-only observers: they never block the turn and never
// influence control flow.
package telemetry

import (
	"sync"
	"time"

	"github.com/grounded-agent/server/internal/agent/model"
	logx "github.com/grounded-agent/server/pkg/logger"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeError   Outcome = "error"
	OutcomeRefused Outcome = "refused"
)

// StepEvent describes one committed transition of the orchestration graph.
type StepEvent struct {
	TurnID           string
	Step             string
	Model            string
	Latency          time.Duration
	PromptTokens     int
	CompletionTokens int
	Outcome          Outcome
	Detail           string
}

// Sink receives step events. Record is fire-and-forget: implementations
// must not block and must not return errors to the caller.
type Sink interface {
	Record(ev StepEvent)
}

// LogSink writes events through the structured logger on a background
// goroutine. Events are dropped, not queued unboundedly, when the buffer
// is full.
type LogSink struct {
	ch   chan StepEvent
	done chan struct{}
}

func NewLogSink(buffer int) *LogSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &LogSink{
		ch:   make(chan StepEvent, buffer),
		done: make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *LogSink) Record(ev StepEvent) {
	select {
	case s.ch <- ev:
	default:
		// observer must never block the turn
	}
}

func (s *LogSink) drain() {
	defer close(s.done)
	log := logx.With("telemetry")
	for ev := range s.ch {
		e := log.Info().
			Str("turn_id", ev.TurnID).
			Str("step", ev.Step).
			Dur("latency", ev.Latency).
			Str("outcome", string(ev.Outcome))
		if ev.Model != "" {
			pricing := model.ResolvePricing(ev.Model)
			_, _, total := model.ComputeCost(ev.PromptTokens, ev.CompletionTokens, pricing)
			e = e.Str("model", ev.Model).
				Int("prompt_tokens", ev.PromptTokens).
				Int("completion_tokens", ev.CompletionTokens).
				Float64("cost_usd", total)
		}
		if ev.Detail != "" {
			e = e.Str("detail", ev.Detail)
		}
		e.Msg("step")
	}
}

// Close flushes and stops the background writer.
func (s *LogSink) Close() {
	close(s.ch)
	<-s.done
}

// MemorySink collects events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []StepEvent
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(ev StepEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []StepEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepEvent, len(s.events))
	copy(out, s.events)
	return out
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Record(StepEvent) {}
