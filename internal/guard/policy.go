// Package guard implements the guardrail policy engine: refusal pattern
// matching, PII masking and the web URL allowlist. All checks are pure
// functions over the input text; the engine holds only compiled patterns
// and configuration.
package guard

import (
	"net/url"
	"regexp"
	"strings"

	logx "github.com/grounded-agent/server/pkg/logger"
)

// RuleID identifies a triggered policy rule. Rule identifiers are logged
// and recorded in turn state but never shown to the end user.
type RuleID string

const (
	RuleRefusalLegal   RuleID = "refusal_legal"
	RuleRefusalMedical RuleID = "refusal_medical"
	RuleRefusalFinance RuleID = "refusal_financial"
	RuleRefusalDocGen  RuleID = "refusal_document_generation"
	RuleURLNotAllowed  RuleID = "url_allowlist"
)

// Checkpoint names the three places the engine is consulted.
type Checkpoint string

const (
	CheckpointQuery     Checkpoint = "pre_retrieval"
	CheckpointToolInput Checkpoint = "pre_tool"
	CheckpointDraft     Checkpoint = "pre_finalize"
)

// RefusalMessage is the fixed user-visible refusal. It never reveals which
// rule fired.
const RefusalMessage = "I can't help with that request. I can answer questions " +
	"about company policies and procedures based on our internal documents."

type refusalRule struct {
	re *regexp.Regexp
	id RuleID
}

type piiRule struct {
	re          *regexp.Regexp
	replacement string
}

var refusalRules = []refusalRule{
	{regexp.MustCompile(`(?i)legal advice|lawyer|legal counsel|sue\b|lawsuit|legal opinion`), RuleRefusalLegal},
	{regexp.MustCompile(`(?i)medical advice|diagnose|prescription|treatment|doctor|symptom|disease|medicine`), RuleRefusalMedical},
	{regexp.MustCompile(`(?i)financial advice|investment|trading|stock pick|buy.*stock|sell.*stock`), RuleRefusalFinance},
	{regexp.MustCompile(`(?i)generate.*letter|write.*contract|draft.*document|create.*legal`), RuleRefusalDocGen},
}

var piiRules = []piiRule{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`\b\d{16}\b`), "[REDACTED_CREDIT_CARD]"},
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>)\]]+`)

// factualPatterns flag drafts that assert facts and therefore should not
// ship uncited without a hedge.
var factualPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)what is|how much|when|where|who|explain|describe`),
	regexp.MustCompile(`(?i)policy|procedure|allowance|rate|formula`),
	regexp.MustCompile(`\$\d`),
}

// Evaluation is the result of one guardrail pass.
type Evaluation struct {
	Flags      []RuleID
	MaskedText string
}

// Flagged reports whether any rule fired.
func (e Evaluation) Flagged() bool {
	return len(e.Flags) > 0
}

// Engine evaluates text against the policy rule set. Safe for concurrent
// use; it is immutable after construction.
type Engine struct {
	allowedHosts map[string]bool
}

// New builds an engine with the given URL allowlist (lowercase host names).
func New(allowedDomains []string) *Engine {
	hosts := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		hosts[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return &Engine{allowedHosts: hosts}
}

// Evaluate runs the checkpoint-appropriate rules over text. Refusal
// patterns apply at the query and draft checkpoints; the URL allowlist at
// the tool-input checkpoint. MaskedText always carries the PII-masked
// rendition; callers apply it to outgoing text only, never to the
// scratchpad or the tool journal.
func (e *Engine) Evaluate(text string, cp Checkpoint) Evaluation {
	ev := Evaluation{MaskedText: MaskPII(text)}

	if cp == CheckpointQuery || cp == CheckpointDraft {
		for _, r := range refusalRules {
			if r.re.MatchString(text) {
				ev.Flags = append(ev.Flags, r.id)
			}
		}
	}

	if cp == CheckpointToolInput {
		for _, raw := range urlPattern.FindAllString(text, -1) {
			if !e.urlAllowed(raw) {
				ev.Flags = append(ev.Flags, RuleURLNotAllowed)
				break
			}
		}
	}

	if ev.Flagged() {
		logx.Warn().
			Str("checkpoint", string(cp)).
			Strs("rules", ruleStrings(ev.Flags)).
			Msg("guardrail rule triggered")
	}
	return ev
}

func (e *Engine) urlAllowed(raw string) bool {
	u, err := url.Parse(strings.TrimRight(raw, ".,;"))
	if err != nil {
		return false
	}
	return e.allowedHosts[strings.ToLower(u.Hostname())]
}

// MaskPII rewrites PII spans to [REDACTED_<TYPE>] markers.
func MaskPII(text string) string {
	masked := text
	count := 0
	for _, r := range piiRules {
		if m := r.re.FindAllStringIndex(masked, -1); len(m) > 0 {
			count += len(m)
			masked = r.re.ReplaceAllString(masked, r.replacement)
		}
	}
	if count > 0 {
		logx.Info().Int("count", count).Msg("masked PII spans in text")
	}
	return masked
}

// AssertsFactualClaim reports whether a draft makes claims that warrant
// grounding. Used by finalize to decide whether an answer stripped of all
// citations must be downgraded to a hedged response.
func AssertsFactualClaim(text string) bool {
	for _, re := range factualPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func ruleStrings(ids []RuleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
