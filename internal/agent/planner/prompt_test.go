package planner

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/grounded-agent/server/internal/agent/model"
)

func TestBuildRouterPromptRendersToolsAndState(t *testing.T) {
	tools := []*schema.ToolInfo{
		{
			Name: "calculator",
			Desc: "Safely calculate mathematical expressions.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"expr": {Type: "string", Desc: "expression", Required: true},
			}),
		},
	}
	view := model.StateView{
		Query: "What is the per diem rate?",
		History: []*schema.Message{
			schema.UserMessage("hi"),
			schema.AssistantMessage("hello, how can I help?", nil),
		},
		Observations:    []string{"retrieved 1 passages for \"per diem\": [travel@0-40] ..."},
		RetrievalRounds: 1,
		StepCount:       1,
		MaxSteps:        10,
	}

	system, user := BuildRouterPrompt(view, tools)

	assert.Contains(t, system, "calculator")
	assert.Contains(t, system, "\"action\":\"finalize\"")
	assert.Contains(t, system, "doc_id@start-end")

	assert.Contains(t, user, "UserMessage(hi)")
	assert.Contains(t, user, "AssistantMessage(hello, how can I help?)")
	assert.Contains(t, user, "User query: What is the per diem rate?")
	assert.Contains(t, user, "Step 2 of 10.")
	assert.Contains(t, user, "Retrieval rounds so far: 1.")
	assert.Contains(t, user, "travel@0-40")
}

func TestBuildRouterPromptWeakGroundingNote(t *testing.T) {
	_, user := BuildRouterPrompt(model.StateView{
		Query:           "anything",
		RetrievalRounds: 2,
		WeakGrounding:   true,
		MaxSteps:        10,
	}, nil)
	assert.Contains(t, user, "weak or empty grounding")
}

func TestBuildRouterPromptOmitsEmptySections(t *testing.T) {
	_, user := BuildRouterPrompt(model.StateView{Query: "q", MaxSteps: 10}, nil)
	assert.False(t, strings.Contains(user, "<conversation_context>"))
	assert.False(t, strings.Contains(user, "Observations"))
	assert.False(t, strings.Contains(user, "Tool calls"))
}
