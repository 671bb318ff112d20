// Package assistant wraps the AI model behind the ephemeral chatbot. The
// chatbot service calls the model first and persists the turn only on
// success, so a model failure never leaves an orphan user message.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yamifit/yamifit-backend/internal/domain"
)

// ErrEmptyReply indicates the model returned no usable completion.
var ErrEmptyReply = errors.New("assistant returned an empty reply")

const systemPrompt = "You are YamiFit's nutrition and fitness assistant. " +
	"Give concise, practical answers about meals, training, and habits. " +
	"You are not a medical professional; suggest consulting one for health concerns."

// Responder produces the assistant half of a chatbot turn given the visible
// conversation history and the new user text.
type Responder interface {
	Reply(ctx context.Context, history []domain.ChatbotMessage, userText string) (string, error)
}

// OpenAIResponder implements Responder on the OpenAI chat completion API.
type OpenAIResponder struct {
	client *openai.Client
	model  string
}

// NewOpenAIResponder builds a responder for the given API key and model.
func NewOpenAIResponder(apiKey, model string) *OpenAIResponder {
	if strings.TrimSpace(model) == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{client: openai.NewClient(apiKey), model: model}
}

// Reply sends the history plus the new user turn to the model and returns
// the completion text. The caller owns the deadline via ctx.
func (r *OpenAIResponder) Reply(ctx context.Context, history []domain.ChatbotMessage, userText string) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.BotRoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}
