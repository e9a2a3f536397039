package planner

import (
	"encoding/json"
	"strings"

	"github.com/grounded-agent/server/internal/agent/model"
	errx "github.com/grounded-agent/server/internal/core/error"
	logx "github.com/grounded-agent/server/pkg/logger"
)

// maxDecisionLen guards against pathological model output.
const maxDecisionLen = 64 * 1024

type rawDecision struct {
	Action    string          `json:"action"`
	Query     string          `json:"query"`
	TopK      int             `json:"k"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
	Confirm   bool            `json:"confirm"`
	Answer    string          `json:"answer"`
	Citations []string        `json:"citations"`
}

// ParseDecision turns the model's JSON reply into exactly one Decision
// variant. A reply that cannot be mapped to a variant is a
// MalformedResponse, which is fatal for the turn.
//
// When the model asks for both a retrieval and a tool call in one step,
// retrieval wins and the tool request is dropped: grounding before action.
func ParseDecision(content string) (model.Decision, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errx.Newf(errx.KindMalformedResponse, "empty planner response")
	}
	if len(content) > maxDecisionLen {
		return nil, errx.Newf(errx.KindMalformedResponse, "planner response too large (%d bytes)", len(content))
	}
	content = stripCodeFence(content)

	var raw rawDecision
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, errx.New(err, errx.KindMalformedResponse, "planner response is not a JSON decision")
	}

	if raw.Query != "" && raw.Tool != "" {
		logx.Warn().
			Str("tool", raw.Tool).
			Msg("planner requested retrieval and tool in one step; deferring tool")
		raw.Action = "retrieve"
	}

	switch strings.ToLower(strings.TrimSpace(raw.Action)) {
	case "retrieve", "rag":
		if strings.TrimSpace(raw.Query) == "" {
			return nil, errx.Newf(errx.KindMalformedResponse, "retrieve decision without query")
		}
		return model.RetrieveRequest{Query: raw.Query, TopK: raw.TopK}, nil

	case "tool":
		name := strings.TrimSpace(raw.Tool)
		if name == "" {
			return nil, errx.Newf(errx.KindMalformedResponse, "tool decision without tool name")
		}
		input := raw.Input
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		return model.ToolRequest{Name: name, Input: input, Confirm: raw.Confirm}, nil

	case "finalize":
		if strings.TrimSpace(raw.Answer) == "" {
			return nil, errx.Newf(errx.KindMalformedResponse, "finalize decision without answer")
		}
		return model.FinalizeRequest{Draft: raw.Answer, Citations: parseClaims(raw.Citations)}, nil

	default:
		return nil, errx.Newf(errx.KindMalformedResponse, "unknown planner action %q", raw.Action)
	}
}

// parseClaims keeps every claimed citation, parseable or not. Keys that do
// not parse become claims that can never match a scratchpad passage, so
// reconciliation strips them and counts the grounding violation.
func parseClaims(keys []string) []model.Citation {
	out := make([]model.Citation, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		c, err := model.ParseCitationKey(key)
		if err != nil {
			out = append(out, model.Citation{DocID: key, Start: -1, End: -1})
			continue
		}
		out = append(out, c)
	}
	return out
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
