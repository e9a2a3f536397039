package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/grounded-agent/server/internal/agent/model"
)

const routerSystemPrompt = `You are the routing model for a grounded question-answering agent.
Each step you must choose exactly one next action and reply with a single JSON object.

Actions:
1. {"action":"retrieve","query":"...","k":5}
   Use when the query needs STATIC document knowledge (policies, procedures,
   allowances, documented facts) and the observations below do not already
   contain the relevant passages.
2. {"action":"tool","tool":"<name>","input":{...},"confirm":false}
   Use when the query needs DYNAMIC data or an action: calculations, calendar
   events, files, current web information. Set "confirm":true only when the
   user has clearly asked for a state-changing action (creating events,
   writing files, clearing data).
3. {"action":"finalize","answer":"...","citations":["doc_id@start-end", ...]}
   Use when the observations are sufficient to answer. Cite the passages you
   used by their doc_id@start-end keys from the retrieval observations. Never
   cite a passage that is not present in the observations. When no retrieval
   backs the answer, use an empty citations list and say explicitly that the
   answer is not grounded in the document corpus.

Rules:
- Reply with one JSON object and nothing else.
- Never request retrieval you already performed for the same query.
- After a tool or retrieval error, either adapt (different action or input)
  or finalize with an honest explanation. Do not repeat the failing call.`

// BuildRouterPrompt renders the system and user messages for one routing
// decision from the read-only state view.
func BuildRouterPrompt(view model.StateView, tools []*schema.ToolInfo) (system, user string) {
	var b strings.Builder
	b.WriteString(routerSystemPrompt)
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range tools {
		b.WriteString(renderTool(t))
		b.WriteByte('\n')
	}
	system = b.String()

	var u strings.Builder
	if ctxStr := renderHistory(view.History); ctxStr != "" {
		u.WriteString("<conversation_context>\n")
		u.WriteString(ctxStr)
		u.WriteString("</conversation_context>\n\n")
	}

	fmt.Fprintf(&u, "User query: %s\n", view.Query)
	fmt.Fprintf(&u, "Step %d of %d.\n", view.StepCount+1, view.MaxSteps)
	if view.RetrievalRounds > 0 {
		fmt.Fprintf(&u, "Retrieval rounds so far: %d.\n", view.RetrievalRounds)
	}
	if view.WeakGrounding {
		u.WriteString("Note: retrieval so far produced only weak or empty grounding.\n")
	}
	if view.ToolCallCount > 0 {
		fmt.Fprintf(&u, "Tool calls so far: %d.\n", view.ToolCallCount)
	}
	if len(view.Observations) > 0 {
		u.WriteString("\nObservations from this turn, in order:\n")
		for i, obs := range view.Observations {
			fmt.Fprintf(&u, "%d. %s\n", i+1, obs)
		}
	}
	u.WriteString("\nDecide the next action.")
	return system, u.String()
}

func renderTool(info *schema.ToolInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %s", info.Name, info.Desc)
	if info.ParamsOneOf != nil {
		if s, err := info.ParamsOneOf.ToOpenAPIV3(); err == nil && s != nil {
			if raw, err := json.Marshal(s); err == nil {
				fmt.Fprintf(&b, "\n  parameters: %s", raw)
			}
		}
	}
	return b.String()
}

func renderHistory(msgs []*schema.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		if m == nil || m.Content == "" {
			continue
		}
		switch m.Role {
		case schema.User:
			fmt.Fprintf(&b, "UserMessage(%s)\n", m.Content)
		case schema.Assistant:
			fmt.Fprintf(&b, "AssistantMessage(%s)\n", m.Content)
		}
	}
	return b.String()
}
