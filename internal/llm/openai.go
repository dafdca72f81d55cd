package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client on the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	log    *logger.Logger
}

func NewOpenAIClient(apiKey, model string, log *logger.Logger) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log,
	}
}

// apiErr maps an OpenAI failure onto the taxonomy. Rate limits and
// upstream 5xx read as unavailable so clients know to retry; anything
// else is a backend fault.
func (o *OpenAIClient) apiErr(ctx context.Context, err error, op string) error {
	o.log.Error(ctx).WithFields("error", err, "op", op, "model", o.model).Logs("openai request failed")

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 &&
		apiErr.HTTPStatusCode != 429 && apiErr.HTTPStatusCode < 500 {
		return utils.NewError(utils.CodeBackendError, "Reading generation failed")
	}
	return utils.NewError(utils.CodeUnavailable, "Reading generation is temporarily unavailable")
}

func (o *OpenAIClient) GenerateReading(ctx context.Context, req ReadingRequest) (*GeneratedReading, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: AstrologerPersona},
			{Role: openai.ChatMessageRoleUser, Content: readingPrompt(req)},
		},
	})
	if err != nil {
		return nil, o.apiErr(ctx, err, "generate_reading")
	}
	if len(resp.Choices) == 0 {
		return nil, utils.NewError(utils.CodeBackendError, "Reading generation failed")
	}

	reading, err := ParseGeneratedReading(resp.Choices[0].Message.Content)
	if err != nil {
		o.log.Error(ctx).WithFields("error", err, "model", o.model).Logs("openai returned malformed reading")
		return nil, utils.NewError(utils.CodeBackendError, "Reading generation failed")
	}
	return reading, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", o.apiErr(ctx, err, "complete")
	}
	if len(resp.Choices) == 0 {
		return "", utils.NewError(utils.CodeBackendError, "Completion failed")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIClient) StreamChat(ctx context.Context, system string, history []ChatMessage, onDelta func(string) error) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.7,
		Messages:    messages,
	})
	if err != nil {
		return "", o.apiErr(ctx, err, "stream_chat")
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return full.String(), o.apiErr(ctx, err, "stream_chat_recv")
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return full.String(), err
			}
		}
	}
	return full.String(), nil
}

// ParseGeneratedReading decodes the model's JSON reading, tolerating a
// markdown code fence around the object.
func ParseGeneratedReading(raw string) (*GeneratedReading, error) {
	var wire struct {
		Work       string                    `json:"work"`
		Love       string                    `json:"love"`
		Health     string                    `json:"health"`
		Finance    string                    `json:"finance"`
		Highlights []string                  `json:"highlights"`
		Windows    []models.AuspiciousWindow `json:"auspicious_windows"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return nil, err
	}
	if wire.Work == "" && wire.Love == "" && wire.Health == "" && wire.Finance == "" {
		return nil, errors.New("reading has no sections")
	}
	return &GeneratedReading{
		Sections: models.ReadingSections{
			Work:    wire.Work,
			Love:    wire.Love,
			Health:  wire.Health,
			Finance: wire.Finance,
		},
		Highlights: wire.Highlights,
		Windows:    wire.Windows,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
