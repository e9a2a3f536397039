package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/grounded-agent/server/internal/agent/model"
)

// MessagesManager mediates between the engine and the conversation
// repository: it persists the user/assistant exchange and assembles the
// trimmed cross-turn context. Turn-scoped observations never pass through
// here; only messages carry across turns.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.Context.MaxTurns,
	}
}

// LoadContext returns the most recent prior messages for the conversation,
// trimmed to the configured turn window.
func (cm *MessagesManager) LoadContext(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return trimTail(history.Messages, cm.maxTurns*2), nil
}

// SaveUser persists the incoming user query.
func (cm *MessagesManager) SaveUser(ctx context.Context, conversationID string, query string) error {
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query))
}

// SaveAssistant persists the finalized (already masked) answer.
func (cm *MessagesManager) SaveAssistant(ctx context.Context, conversationID string, content string) error {
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(content, nil))
}

func trimTail(messages []*schema.Message, max int) []*schema.Message {
	if max <= 0 || len(messages) <= max {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-max:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
