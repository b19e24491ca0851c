package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GroqClient implements the Client interface against Groq's chat-completions
// endpoint. Groq speaks the OpenAI API dialect, so we reuse the go-openai
// SDK with a custom BaseURL instead of hand-rolling HTTP requests.
// The same override is what lets tests point the client at an httptest server.
type GroqClient struct {
	client      *openai.Client
	model       string
	visionModel string
	maxTokens   int
}

// NewGroqClient creates a Groq-backed client. model handles the structured
// recommendation call, visionModel handles image analysis.
func NewGroqClient(apiKey, baseURL, model, visionModel string, maxTokens int) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GroqClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		visionModel: visionModel,
		maxTokens:   maxTokens,
	}
}

func (g *GroqClient) ProviderName() string { return "groq" }
func (g *GroqClient) ModelName() string    { return g.model }

// AnalyzeImage base64-encodes the image into an inline data URL and sends it
// alongside the query as a multi-part chat message. The response-size cap
// (maxTokens) bounds how much the model can produce.
func (g *GroqClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string, query string) (string, error) {
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     g.visionModel,
		MaxTokens: g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: query},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("groq vision call: %w", err)
	}

	return firstChoiceContent(resp)
}

// CompleteJSON asks for a JSON-object response at low temperature (0.3) to
// favor deterministic structured output.
func (g *GroqClient) CompleteJSON(ctx context.Context, system string, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("groq completion call: %w", err)
	}

	return firstChoiceContent(resp)
}

// firstChoiceContent extracts the first completion's text, failing when the
// expected response shape is absent.
func firstChoiceContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("upstream returned no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("upstream returned empty content")
	}
	return content, nil
}
