package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are the first responder of a small support team.
A visitor just sent their first message and no human agent has joined yet.
Write one short, friendly acknowledgement in the visitor's language.
Do not promise anything specific, do not invent product facts,
and let them know an agent will join shortly.`

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ai: OPENAI_API_KEY not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (c *OpenAIClient) Reply(ctx context.Context, history []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    "system",
		Content: systemPrompt,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Text,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		log.Warn().Err(err).Msg("openai request failed")
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("ai: empty choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
