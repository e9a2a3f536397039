// Package graph implements the agent orchestration state machine. One
// turn flows ROUTE → (RETRIEVE | TOOL) → ROUTE ... → FINALIZE → DONE,
// with REFUSE reachable before every state exit and ERROR terminal for
// fatal failures. The engine owns the canonical ConversationState; the
// planner, retriever and tools only ever see read-only projections.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/grounded-agent/server/internal/agent/graph/conversations"
	"github.com/grounded-agent/server/internal/agent/model"
	"github.com/grounded-agent/server/internal/agent/planner"
	"github.com/grounded-agent/server/internal/agent/retrieval"
	"github.com/grounded-agent/server/internal/agent/tools"
	errx "github.com/grounded-agent/server/internal/core/error"
	"github.com/grounded-agent/server/internal/guard"
	"github.com/grounded-agent/server/internal/telemetry"
	logx "github.com/grounded-agent/server/pkg/logger"
)

// observationLimit truncates passage/tool text rendered into router
// observations. The scratchpad keeps the full text.
const observationLimit = 400

// Config carries the engine's tunables.
type Config struct {
	Agent     model.AgentConfig
	Retrieval model.RetrievalConfig
}

// Engine executes turns against the orchestration graph.
type Engine struct {
	planner   planner.Planner
	retriever retrieval.Retriever
	registry  *tools.Registry
	guard     *guard.Engine
	manager   *conversations.MessagesManager
	sink      telemetry.Sink
	cfg       Config
}

func NewEngine(
	p planner.Planner,
	r retrieval.Retriever,
	reg *tools.Registry,
	g *guard.Engine,
	mm *conversations.MessagesManager,
	sink telemetry.Sink,
	cfg Config,
) (*Engine, error) {
	if p == nil {
		return nil, fmt.Errorf("planner is nil")
	}
	if reg == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	if g == nil {
		return nil, fmt.Errorf("guard engine is nil")
	}
	if mm == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	if cfg.Agent.MaxSteps <= 0 {
		cfg.Agent.MaxSteps = 10
	}
	return &Engine{
		planner:   p,
		retriever: r,
		registry:  reg,
		guard:     g,
		manager:   mm,
		sink:      sink,
		cfg:       cfg,
	}, nil
}

// RunTurn processes one user query to a terminal phase. Non-fatal
// retrieval and tool failures are absorbed into state and fed back to the
// router; only fatal errors (model failure, step limit, storage,
// cancellation) return a non-nil error. On cancellation the partial state
// is discarded and no answer is returned.
func (e *Engine) RunTurn(ctx context.Context, conversationID, query string) (*model.TurnResult, error) {
	turnID := uuid.NewString()
	log := logx.With("engine")

	history, err := e.manager.LoadContext(ctx, conversationID)
	if err != nil {
		return nil, errx.New(err, errx.KindStorage, "load conversation context")
	}

	st := model.NewTurnState(conversationID, turnID, query, history)
	st.AppendMessage(schema.UserMessage(query))
	if err := e.manager.SaveUser(ctx, conversationID, query); err != nil {
		return nil, errx.New(err, errx.KindStorage, "persist user message")
	}

	log.Debug().
		Str("turn_id", turnID).
		Str("conversation_id", conversationID).
		Int("history_messages", len(history)).
		Msg("turn started")

	// guardrail checkpoint on the raw query, before any routing
	if ev := e.guard.Evaluate(query, guard.CheckpointQuery); ev.Flagged() {
		return e.refuse(ctx, st, "route", ev.Flags), nil
	}

	for {
		// cancellation is honored between steps only, never mid-tool
		if cerr := ctx.Err(); cerr != nil {
			st.Phase = model.PhaseError
			return nil, errx.New(cerr, errx.KindInternal, "turn cancelled")
		}
		if st.StepCount >= e.cfg.Agent.MaxSteps {
			st.Phase = model.PhaseError
			e.record(st, "route", time.Now(), nil, telemetry.OutcomeError, "step limit exceeded")
			return nil, errx.Newf(errx.KindStepLimitExceeded, "turn exceeded step limit %d", e.cfg.Agent.MaxSteps)
		}

		st.Phase = model.PhaseRoute
		start := time.Now()
		decision, usage, derr := e.planner.Decide(ctx, e.viewOf(st), e.registry.Infos())
		if derr != nil {
			st.Phase = model.PhaseError
			e.record(st, "route", start, usage, telemetry.OutcomeError, string(errx.KindOf(derr)))
			return nil, derr
		}
		e.record(st, "route", start, usage, telemetry.OutcomeOK, "")
		st.StepCount++

		switch d := decision.(type) {
		case model.RetrieveRequest:
			if res, terminal := e.stepRetrieve(ctx, st, d); terminal {
				return res, nil
			}
		case model.ToolRequest:
			if res, terminal := e.stepTool(ctx, st, d); terminal {
				return res, nil
			}
		case model.FinalizeRequest:
			return e.stepFinalize(ctx, st, d)
		default:
			st.Phase = model.PhaseError
			return nil, errx.Newf(errx.KindMalformedResponse, "planner produced unknown decision type %T", decision)
		}
	}
}

// stepRetrieve executes RETRIEVE and loops back to ROUTE. Empty and
// low-relevance results are stored (they stay citable) with the weak
// grounding note; retrieval failure is recorded as an observation and is
// never fatal.
func (e *Engine) stepRetrieve(ctx context.Context, st *model.ConversationState, d model.RetrieveRequest) (*model.TurnResult, bool) {
	st.Phase = model.PhaseRetrieve

	if ev := e.guard.Evaluate(d.Query, guard.CheckpointQuery); ev.Flagged() {
		return e.refuse(ctx, st, "retrieve", ev.Flags), true
	}

	k := d.TopK
	if k <= 0 {
		k = e.cfg.Retrieval.TopK
	}
	key := fmt.Sprintf("retrieve:%d", st.StepCount)
	start := time.Now()

	if e.retriever == nil {
		e.commitRetrieval(st, key, d.Query, nil,
			errx.Newf(errx.KindRetrievalUnavailable, "no retriever configured"))
		e.record(st, "retrieve", start, nil, telemetry.OutcomeError, string(errx.KindRetrievalUnavailable))
		return nil, false
	}

	passages, err := e.retriever.Retrieve(ctx, d.Query, k)
	if err != nil {
		e.commitRetrieval(st, key, d.Query, nil, err)
		e.record(st, "retrieve", start, nil, telemetry.OutcomeError, string(errx.KindOf(err)))
		return nil, false
	}

	e.commitRetrieval(st, key, d.Query, passages, nil)
	e.record(st, "retrieve", start, nil, telemetry.OutcomeOK, fmt.Sprintf("%d passages", len(passages)))
	return nil, false
}

// commitRetrieval stores one retrieval round and appends the router-visible
// observation in the same transition, keeping state and message order
// consistent.
func (e *Engine) commitRetrieval(st *model.ConversationState, key, query string, passages []model.Passage, err error) {
	entry := &model.ScratchEntry{Query: query, Passages: passages}
	var obs string
	switch {
	case err != nil:
		entry.Err = err.Error()
		obs = fmt.Sprintf("retrieval for %q failed: %s", query, errx.KindOf(err))
	case len(passages) == 0:
		entry.Weak = true
		obs = fmt.Sprintf("retrieval for %q returned no passages", query)
	default:
		best := passages[0].Score
		entry.Weak = best < e.cfg.Retrieval.MinScore
		var b strings.Builder
		fmt.Fprintf(&b, "retrieved %d passages for %q:", len(passages), query)
		if entry.Weak {
			b.WriteString(" (all below the relevance floor)")
		}
		for _, p := range passages {
			fmt.Fprintf(&b, "\n  [%s] score=%.3f: %s", p.Key(), p.Score, truncate(p.Text, observationLimit))
		}
		obs = b.String()
	}
	st.AddScratch(key, entry)
	st.AppendMessage(&schema.Message{Role: schema.Tool, Content: obs})
}

// stepTool executes TOOL and loops back to ROUTE. Unknown tools, invalid
// inputs and missing confirmations are recorded as error-only journal
// entries; the tool is never executed and the turn continues. Executed
// tool errors are likewise recorded and never auto-retried.
func (e *Engine) stepTool(ctx context.Context, st *model.ConversationState, d model.ToolRequest) (*model.TurnResult, bool) {
	st.Phase = model.PhaseTool
	start := time.Now()

	tool, ok := e.registry.Get(d.Name)
	if !ok {
		e.commitToolError(st, d, errx.Newf(errx.KindUnknownTool, "tool %q is not registered", d.Name))
		e.record(st, "tool:"+d.Name, start, nil, telemetry.OutcomeError, string(errx.KindUnknownTool))
		return nil, false
	}

	if err := tool.Validate(d.Input); err != nil {
		e.commitToolError(st, d, errx.New(err, errx.KindInvalidToolInput, "tool input failed validation"))
		e.record(st, "tool:"+d.Name, start, nil, telemetry.OutcomeError, string(errx.KindInvalidToolInput))
		return nil, false
	}

	if tool.Risk() == tools.RiskSideEffecting && !d.Confirm {
		e.commitToolError(st, d, errx.Newf(errx.KindConfirmationRequired, "side-effecting tool %q requires confirmation", d.Name))
		e.record(st, "tool:"+d.Name, start, nil, telemetry.OutcomeError, string(errx.KindConfirmationRequired))
		return nil, false
	}

	// guardrail checkpoint on the validated input, before execution
	if ev := e.guard.Evaluate(string(d.Input), guard.CheckpointToolInput); ev.Flagged() {
		return e.refuse(ctx, st, "tool:"+d.Name, ev.Flags), true
	}

	toolCtx := ctx
	if e.cfg.Agent.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.Agent.ToolTimeout)*time.Second)
		defer cancel()
	}

	output, err := tool.Invoke(toolCtx, d.Input)
	if err != nil {
		e.commitToolError(st, d, errx.New(err, errx.KindToolError, "tool execution failed"))
		e.record(st, "tool:"+d.Name, start, nil, telemetry.OutcomeError, string(errx.KindToolError))
		return nil, false
	}

	st.RecordToolCall(model.ToolCallRecord{
		Name:      d.Name,
		Input:     d.Input,
		Output:    output,
		Timestamp: time.Now(),
	})
	st.AppendMessage(&schema.Message{
		Role:    schema.Tool,
		Content: fmt.Sprintf("tool %s returned: %s", d.Name, truncate(output, observationLimit)),
	})
	e.record(st, "tool:"+d.Name, start, nil, telemetry.OutcomeOK, "")
	return nil, false
}

// commitToolError journals a failed or rejected invocation. Output stays
// empty: a result may only ever come from an actual execution.
func (e *Engine) commitToolError(st *model.ConversationState, d model.ToolRequest, err error) {
	st.RecordToolCall(model.ToolCallRecord{
		Name:      d.Name,
		Input:     d.Input,
		Err:       err.Error(),
		Timestamp: time.Now(),
	})
	st.AppendMessage(&schema.Message{
		Role:    schema.Tool,
		Content: fmt.Sprintf("tool %s failed: %s", d.Name, errx.KindOf(err)),
	})
}

// refuse is the REFUSE terminal: a fixed message that never reveals the
// triggered rule. The full flag set stays in state and telemetry.
func (e *Engine) refuse(ctx context.Context, st *model.ConversationState, step string, flags []guard.RuleID) *model.TurnResult {
	for _, f := range flags {
		st.Flag(string(f))
	}
	st.Phase = model.PhaseRefuse
	st.AppendMessage(schema.AssistantMessage(guard.RefusalMessage, nil))
	if err := e.manager.SaveAssistant(ctx, st.ConversationID, guard.RefusalMessage); err != nil {
		logx.Error().Err(err).Str("turn_id", st.TurnID).Msg("failed to persist refusal message")
	}
	e.record(st, step, time.Now(), nil, telemetry.OutcomeRefused, "")
	return &model.TurnResult{
		Answer:    guard.RefusalMessage,
		Refused:   true,
		Phase:     model.PhaseRefuse,
		StepCount: st.StepCount,
	}
}

// viewOf projects read-only state for the router: the cross-turn history
// plus this turn's observations in committed order.
func (e *Engine) viewOf(st *model.ConversationState) model.StateView {
	var history []*schema.Message
	var observations []string
	for _, m := range st.Messages {
		if m == nil {
			continue
		}
		if m.Role == schema.Tool {
			observations = append(observations, m.Content)
			continue
		}
		history = append(history, m)
	}
	return model.StateView{
		Query:           st.Query,
		History:         history,
		Observations:    observations,
		RetrievalRounds: len(st.ScratchOrder),
		WeakGrounding:   st.WeakGrounding(),
		ToolCallCount:   len(st.ToolCalls),
		StepCount:       st.StepCount,
		MaxSteps:        e.cfg.Agent.MaxSteps,
	}
}

func (e *Engine) record(st *model.ConversationState, step string, start time.Time, usage *planner.Usage, outcome telemetry.Outcome, detail string) {
	ev := telemetry.StepEvent{
		TurnID:  st.TurnID,
		Step:    step,
		Latency: time.Since(start),
		Outcome: outcome,
		Detail:  detail,
	}
	if usage != nil {
		ev.Model = usage.Model
		ev.PromptTokens = usage.PromptTokens
		ev.CompletionTokens = usage.CompletionTokens
	}
	e.sink.Record(ev)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
