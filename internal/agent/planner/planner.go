// Package planner is the Model Call boundary: it asks the LLM what the
// orchestration graph should do next and parses the reply into a typed
// Decision. It never mutates conversation state.
package planner

import (
	"context"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"

	"github.com/grounded-agent/server/internal/agent/model"
	errx "github.com/grounded-agent/server/internal/core/error"
	logx "github.com/grounded-agent/server/pkg/logger"
)

// Usage carries token accounting for one planner call.
type Usage struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Planner decides the next action from a read-only view of the turn.
type Planner interface {
	Decide(ctx context.Context, view model.StateView, tools []*schema.ToolInfo) (model.Decision, *Usage, error)
}

// OpenAIPlanner implements Planner over the OpenAI chat completions API.
type OpenAIPlanner struct {
	client *openai.Client
	cfg    model.PlannerModelConfig
}

func NewOpenAIPlanner(client *openai.Client, cfg model.PlannerModelConfig) *OpenAIPlanner {
	return &OpenAIPlanner{client: client, cfg: cfg}
}

// Decide builds the router prompt, calls the model and parses the typed
// decision. Transport failures surface as ModelUnavailable, unparseable
// replies as MalformedResponse; both are fatal for the turn. The call is
// retried only up to the configured attempt count (default one).
func (p *OpenAIPlanner) Decide(ctx context.Context, view model.StateView, tools []*schema.ToolInfo) (model.Decision, *Usage, error) {
	system, user := BuildRouterPrompt(view, tools)

	attempts := p.cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       p.cfg.Model,
			Temperature: p.cfg.Temperature,
			MaxTokens:   p.cfg.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err == nil {
			break
		}
		logx.Warn().Err(err).Int("attempt", attempt).Int("attempts", attempts).Msg("planner call failed")
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, nil, errx.New(err, errx.KindModelUnavailable, "planner model call failed")
	}
	if len(resp.Choices) == 0 {
		return nil, nil, errx.Newf(errx.KindMalformedResponse, "planner returned no choices")
	}

	usage := &Usage{
		Model:            p.cfg.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}

	decision, perr := ParseDecision(resp.Choices[0].Message.Content)
	if perr != nil {
		return nil, usage, perr
	}
	return decision, usage, nil
}

var _ Planner = (*OpenAIPlanner)(nil)
