package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grounded-agent/server/internal/agent/model"
	errx "github.com/grounded-agent/server/internal/core/error"
)

func TestParseDecisionRetrieve(t *testing.T) {
	d, err := ParseDecision(`{"action":"retrieve","query":"expense policy","k":3}`)
	require.NoError(t, err)
	require.IsType(t, model.RetrieveRequest{}, d)
	req := d.(model.RetrieveRequest)
	assert.Equal(t, "expense policy", req.Query)
	assert.Equal(t, 3, req.TopK)
}

func TestParseDecisionRagAlias(t *testing.T) {
	d, err := ParseDecision(`{"action":"rag","query":"vacation days"}`)
	require.NoError(t, err)
	assert.IsType(t, model.RetrieveRequest{}, d)
}

func TestParseDecisionTool(t *testing.T) {
	d, err := ParseDecision(`{"action":"tool","tool":"calculator","input":{"expr":"2+2"},"confirm":false}`)
	require.NoError(t, err)
	require.IsType(t, model.ToolRequest{}, d)
	req := d.(model.ToolRequest)
	assert.Equal(t, "calculator", req.Name)
	assert.JSONEq(t, `{"expr":"2+2"}`, string(req.Input))
	assert.False(t, req.Confirm)
}

func TestParseDecisionToolDefaultsEmptyInput(t *testing.T) {
	d, err := ParseDecision(`{"action":"tool","tool":"calendar_list"}`)
	require.NoError(t, err)
	req := d.(model.ToolRequest)
	assert.JSONEq(t, `{}`, string(req.Input))
}

func TestParseDecisionFinalize(t *testing.T) {
	d, err := ParseDecision(`{"action":"finalize","answer":"Thirty days.","citations":["handbook@120-190"]}`)
	require.NoError(t, err)
	require.IsType(t, model.FinalizeRequest{}, d)
	req := d.(model.FinalizeRequest)
	assert.Equal(t, "Thirty days.", req.Draft)
	require.Len(t, req.Citations, 1)
	assert.Equal(t, model.Citation{DocID: "handbook", Start: 120, End: 190}, req.Citations[0])
}

func TestParseDecisionRetrievalWinsOverTool(t *testing.T) {
	// when the model asks for both in one step, grounding comes first
	d, err := ParseDecision(`{"action":"tool","tool":"calculator","input":{"expr":"1"},"query":"per diem rates"}`)
	require.NoError(t, err)
	require.IsType(t, model.RetrieveRequest{}, d)
	assert.Equal(t, "per diem rates", d.(model.RetrieveRequest).Query)
}

func TestParseDecisionStripsCodeFence(t *testing.T) {
	d, err := ParseDecision("```json\n{\"action\":\"finalize\",\"answer\":\"done\"}\n```")
	require.NoError(t, err)
	assert.IsType(t, model.FinalizeRequest{}, d)
}

func TestParseDecisionUnparseableCitationsSurvive(t *testing.T) {
	// bad keys become claims that can never reconcile, so the grounding
	// violation is counted at finalize instead of being silently dropped
	d, err := ParseDecision(`{"action":"finalize","answer":"ok","citations":["not a key"]}`)
	require.NoError(t, err)
	req := d.(model.FinalizeRequest)
	require.Len(t, req.Citations, 1)
	assert.Equal(t, model.Citation{DocID: "not a key", Start: -1, End: -1}, req.Citations[0])
}

func TestParseDecisionMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":                 "",
		"not json":              "sure, I'll look that up",
		"unknown action":        `{"action":"think"}`,
		"retrieve no query":     `{"action":"retrieve"}`,
		"tool no name":          `{"action":"tool"}`,
		"finalize no answer":    `{"action":"finalize"}`,
		"oversized":             `{"action":"finalize","answer":"` + strings.Repeat("x", 70*1024) + `"}`,
		"array instead of json": `["retrieve"]`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := ParseDecision(content)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.Equal(t, errx.KindMalformedResponse, errx.KindOf(err))
		})
	}
}
