package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements the Client interface using Claude, which is
// natively multimodal — the image travels as a base64 content block in the
// same user message as the query text.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicClient creates a Claude-backed client. One model serves both
// the vision and recommendation calls.
func NewAnthropicClient(apiKey string, model string, maxTokens int) *AnthropicClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicClient{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string    { return a.model }

func (a *AnthropicClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string, query string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(query),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic vision call: %w", err)
	}

	return messageText(message)
}

// CompleteJSON runs the recommendation prompt. Claude has no JSON response
// mode, so the system prompt demands a bare JSON object and we strip any
// markdown code fences before handing the content back.
func (a *AnthropicClient) CompleteJSON(ctx context.Context, system string, user string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: param.NewOpt(0.3),
		System: []anthropic.TextBlockParam{
			{Text: system + " Respond with a single JSON object and nothing else."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion call: %w", err)
	}

	text, err := messageText(message)
	if err != nil {
		return "", err
	}
	return StripCodeFences(text), nil
}

// messageText concatenates the text blocks of a Claude response, failing
// when the expected shape is absent.
func messageText(message *anthropic.Message) (string, error) {
	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return content, nil
}

// StripCodeFences removes a surrounding markdown code fence (``` or ```json)
// from LLM output. Models without a JSON response mode often wrap their
// answer in one even when told not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line, e.g. "json"
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
