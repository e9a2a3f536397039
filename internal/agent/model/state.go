package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Phase identifies a state of the orchestration machine. PhaseDone and
// PhaseError are terminal; PhaseRefuse produces the fixed refusal and is
// reachable from every other non-terminal phase.
type Phase string

const (
	PhaseRoute    Phase = "ROUTE"
	PhaseRetrieve Phase = "RETRIEVE"
	PhaseTool     Phase = "TOOL"
	PhaseFinalize Phase = "FINALIZE"
	PhaseRefuse   Phase = "REFUSE"
	PhaseError    Phase = "ERROR"
	PhaseDone     Phase = "DONE"
)

// Passage is a retrieved chunk with provenance.
type Passage struct {
	DocID  string  `json:"doc_id"`
	Text   string  `json:"text"`
	Offset int     `json:"offset"`
	Score  float64 `json:"score"`
}

// End returns the exclusive end offset of the passage within its document.
func (p Passage) End() int {
	return p.Offset + len(p.Text)
}

// Key renders the passage span in the doc@start-end form the router cites.
func (p Passage) Key() string {
	return fmt.Sprintf("%s@%d-%d", p.DocID, p.Offset, p.End())
}

// Citation is a (document id, offset range) pair claimed by a draft answer.
type Citation struct {
	DocID string `json:"doc_id"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Key renders the citation in the doc@start-end form used in prompts and
// in the CLI's Sources line.
func (c Citation) Key() string {
	return fmt.Sprintf("%s@%d-%d", c.DocID, c.Start, c.End)
}

// ParseCitationKey parses "doc@start-end" (or "doc@offset" for a zero-width
// claim) back into a Citation.
func ParseCitationKey(s string) (Citation, error) {
	s = strings.TrimSpace(s)
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return Citation{}, fmt.Errorf("invalid citation key %q", s)
	}
	c := Citation{DocID: s[:at]}
	span := s[at+1:]
	if dash := strings.Index(span, "-"); dash >= 0 {
		start, err := strconv.Atoi(span[:dash])
		if err != nil {
			return Citation{}, fmt.Errorf("invalid citation start in %q", s)
		}
		end, err := strconv.Atoi(span[dash+1:])
		if err != nil {
			return Citation{}, fmt.Errorf("invalid citation end in %q", s)
		}
		c.Start, c.End = start, end
	} else {
		start, err := strconv.Atoi(span)
		if err != nil {
			return Citation{}, fmt.Errorf("invalid citation offset in %q", s)
		}
		c.Start, c.End = start, start
	}
	if c.End < c.Start {
		return Citation{}, fmt.Errorf("inverted citation range in %q", s)
	}
	return c, nil
}

// ScratchEntry holds the outcome of one retrieval round. Entries are
// immutable once stored; low-relevance results are kept (they remain
// citable) with Weak set so the router knows the grounding is thin.
type ScratchEntry struct {
	Query    string
	Passages []Passage
	Weak     bool
	Err      string
}

// ToolCallRecord is an append-only journal entry for one attempted tool
// invocation. Output is set only when the tool actually executed; failed
// schema validation, missing confirmation and unknown tools record Err
// with an empty Output.
type ToolCallRecord struct {
	Name      string
	Input     json.RawMessage
	Output    string
	Err       string
	Timestamp time.Time
}

// ConversationState is the single-owner turn state threaded through the
// orchestration graph. Only the graph's transition handlers mutate it;
// the planner sees a read-only StateView projection.
type ConversationState struct {
	ConversationID string
	TurnID         string
	Query          string

	Messages       []*schema.Message
	Scratchpad     map[string]*ScratchEntry
	ScratchOrder   []string
	Citations      []Citation
	ToolCalls      []ToolCallRecord
	GuardrailFlags []string
	StepCount      int
	Phase          Phase
}

// NewTurnState creates the state for one user turn. Prior turns contribute
// messages only; everything else is turn-scoped and starts empty.
func NewTurnState(conversationID, turnID, query string, history []*schema.Message) *ConversationState {
	msgs := make([]*schema.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return &ConversationState{
		ConversationID: conversationID,
		TurnID:         turnID,
		Query:          query,
		Messages:       msgs,
		Scratchpad:     map[string]*ScratchEntry{},
		Phase:          PhaseRoute,
	}
}

// AppendMessage appends to the ordered message log. Messages are never
// rewritten after this point.
func (s *ConversationState) AppendMessage(m *schema.Message) {
	s.Messages = append(s.Messages, m)
}

// AddScratch stores a retrieval round under a step key, preserving order.
func (s *ConversationState) AddScratch(key string, entry *ScratchEntry) {
	s.Scratchpad[key] = entry
	s.ScratchOrder = append(s.ScratchOrder, key)
}

// RecordToolCall appends to the tool journal.
func (s *ConversationState) RecordToolCall(rec ToolCallRecord) {
	s.ToolCalls = append(s.ToolCalls, rec)
}

// Flag records triggered guardrail rules for this turn.
func (s *ConversationState) Flag(rules ...string) {
	s.GuardrailFlags = append(s.GuardrailFlags, rules...)
}

// Flagged reports whether any guardrail rule fired this turn.
func (s *ConversationState) Flagged() bool {
	return len(s.GuardrailFlags) > 0
}

// PassageFor returns the scratchpad passage backing a citation, if any.
// A citation is backed when its document matches and its offset range lies
// within a retrieved span from this turn.
func (s *ConversationState) PassageFor(c Citation) (Passage, bool) {
	for _, key := range s.ScratchOrder {
		entry := s.Scratchpad[key]
		if entry == nil {
			continue
		}
		for _, p := range entry.Passages {
			if p.DocID == c.DocID && c.Start >= p.Offset && c.End <= p.End() {
				return p, true
			}
		}
	}
	return Passage{}, false
}

// WeakGrounding reports whether every retrieval round so far came back
// empty or below the relevance floor.
func (s *ConversationState) WeakGrounding() bool {
	if len(s.ScratchOrder) == 0 {
		return false
	}
	for _, key := range s.ScratchOrder {
		entry := s.Scratchpad[key]
		if entry != nil && entry.Err == "" && !entry.Weak && len(entry.Passages) > 0 {
			return false
		}
	}
	return true
}

// TurnResult is handed to the caller when a turn reaches a terminal phase.
type TurnResult struct {
	Answer              string
	Citations           []Citation
	Refused             bool
	Hedged              bool
	Phase               Phase
	StepCount           int
	GroundingViolations int
}

// StateView is the read-only projection of ConversationState given to the
// router. It carries no references the planner could use to mutate state.
type StateView struct {
	Query           string
	History         []*schema.Message
	Observations    []string
	RetrievalRounds int
	WeakGrounding   bool
	ToolCallCount   int
	StepCount       int
	MaxSteps        int
}
