package inference

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/case-extractor/pkg/anthropic"
)

// Anthropic extracts through the Claude Messages API.
type Anthropic struct {
	client   anthropic.Client
	settings Settings
}

// NewAnthropic wraps an anthropic client.
func NewAnthropic(client anthropic.Client, settings Settings) *Anthropic {
	return &Anthropic{client: client, settings: settings}
}

// Extract sends the screenshot as an image block followed by the prompt.
func (a *Anthropic) Extract(ctx context.Context, req Request) (string, error) {
	temp := a.settings.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.settings.Model,
		MaxTokens:   int64(a.settings.MaxTokens),
		Temperature: &temp,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: BuildPrompt(req),
			Images:  []anthropic.Image{{MediaType: req.mediaType(), Data: req.Image}},
		}},
	})
	if err != nil {
		return "", newError(ProviderAnthropic, anthropic.StatusCode(err), err)
	}

	text := resp.Text()
	if text == "" {
		return "", newError(ProviderAnthropic, 0, eris.Errorf("response has no text content (stop_reason=%s)", resp.StopReason))
	}
	resp.Usage.LogCost(a.settings.Model, req.CaseNumber)
	return text, nil
}
