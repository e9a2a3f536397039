package graph

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/grounded-agent/server/internal/agent/model"
	errx "github.com/grounded-agent/server/internal/core/error"
	"github.com/grounded-agent/server/internal/guard"
	"github.com/grounded-agent/server/internal/telemetry"
	logx "github.com/grounded-agent/server/pkg/logger"
)

// hedgePrefix is prepended when every claimed citation was stripped but
// the draft still asserts facts.
const hedgePrefix = "I could not verify this against my sources, so treat the following with caution: "

// stepFinalize runs the FINALIZE terminal: guardrail check on the draft,
// PII masking, then citation reconciliation against the scratchpad. Claims
// citing passages that were never retrieved this turn are dropped and
// counted as grounding violations; a draft left with no verified citation
// that still asserts facts is downgraded to a hedged answer.
func (e *Engine) stepFinalize(ctx context.Context, st *model.ConversationState, d model.FinalizeRequest) (*model.TurnResult, error) {
	st.Phase = model.PhaseFinalize
	start := time.Now()

	ev := e.guard.Evaluate(d.Draft, guard.CheckpointDraft)
	if ev.Flagged() {
		return e.refuse(ctx, st, "finalize", ev.Flags), nil
	}
	answer := ev.MaskedText

	kept, violations := e.reconcileCitations(st, d.Citations)
	st.Citations = kept
	if violations > 0 {
		log := logx.With("engine")
		log.Warn().
			Str("turn_id", st.TurnID).
			Int("stripped", violations).
			Str("kind", string(errx.KindGroundingViolation)).
			Msg("claimed citations not backed by retrieved passages")
	}

	hedged := false
	if len(kept) == 0 && len(d.Citations) > 0 && guard.AssertsFactualClaim(answer) {
		answer = hedgePrefix + answer
		hedged = true
	}

	st.AppendMessage(schema.AssistantMessage(answer, nil))
	if err := e.manager.SaveAssistant(ctx, st.ConversationID, answer); err != nil {
		st.Phase = model.PhaseError
		e.record(st, "finalize", start, nil, telemetry.OutcomeError, string(errx.KindStorage))
		return nil, errx.New(err, errx.KindStorage, "persist assistant message")
	}

	st.Phase = model.PhaseDone
	e.record(st, "finalize", start, nil, telemetry.OutcomeOK, "")
	log := logx.With("engine")
	log.Debug().
		Str("turn_id", st.TurnID).
		Int("steps", st.StepCount).
		Int("citations", len(kept)).
		Int("grounding_violations", violations).
		Bool("hedged", hedged).
		Msg("turn finished")

	return &model.TurnResult{
		Answer:              answer,
		Citations:           kept,
		Hedged:              hedged,
		Phase:               model.PhaseDone,
		StepCount:           st.StepCount,
		GroundingViolations: violations,
	}, nil
}

// reconcileCitations keeps only claims backed by a passage actually
// retrieved this turn, deduplicated by citation key in first-seen order.
func (e *Engine) reconcileCitations(st *model.ConversationState, claims []model.Citation) ([]model.Citation, int) {
	var kept []model.Citation
	seen := make(map[string]bool, len(claims))
	violations := 0
	for _, c := range claims {
		if _, ok := st.PassageFor(c); !ok {
			violations++
			continue
		}
		if key := c.Key(); !seen[key] {
			seen[key] = true
			kept = append(kept, c)
		}
	}
	return kept, violations
}
