package assist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AIClient abstracts the OpenAI client for easier mocking in unit tests.
type AIClient interface {
	SuggestDescription(ctx context.Context, title, city string) (string, error)
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewFromEnv returns a configured client or nil when OPENAI_API_KEY is unset.
func NewFromEnv() *OpenAIClient {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{client: openai.NewClient(key), model: model}
}

// SuggestDescription asks the model for a short activity description a host
// can edit before publishing.
func (c *OpenAIClient) SuggestDescription(ctx context.Context, title, city string) (string, error) {
	prompt := fmt.Sprintf("Write a friendly two-sentence description for a social travel activity titled %q.", title)
	if city != "" {
		prompt += fmt.Sprintf(" It takes place in %s.", city)
	}
	prompt += " Plain text only, no hashtags."

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You help travelers write inviting activity descriptions."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 160,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
