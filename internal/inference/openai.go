package inference

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/case-extractor/pkg/lmstudio"
)

// OpenAI extracts through an OpenAI-compatible chat completions server.
type OpenAI struct {
	client   lmstudio.Client
	settings Settings
}

// NewOpenAI wraps an lmstudio client.
func NewOpenAI(client lmstudio.Client, settings Settings) *OpenAI {
	return &OpenAI{client: client, settings: settings}
}

// Extract sends the prompt and image in a single user message.
func (o *OpenAI) Extract(ctx context.Context, req Request) (string, error) {
	temp := o.settings.Temperature
	maxTokens := o.settings.MaxTokens

	resp, err := o.client.ChatCompletion(ctx, lmstudio.ChatCompletionRequest{
		Model: o.settings.Model,
		Messages: []lmstudio.Message{{
			Role: "user",
			Content: []lmstudio.ContentPart{
				lmstudio.TextPart(BuildPrompt(req)),
				lmstudio.ImagePart(req.mediaType(), req.Image),
			},
		}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		status := 0
		var se *lmstudio.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return "", newError(ProviderOpenAI, status, err)
	}

	if len(resp.Choices) == 0 {
		return "", newError(ProviderOpenAI, 0, eris.New("response has no choices"))
	}
	content := resp.Choices[0].Message.Content
	if content == nil {
		return "", newError(ProviderOpenAI, 0, eris.New("response message has no content"))
	}

	zap.L().Debug("inference: reply received",
		zap.String("provider", ProviderOpenAI),
		zap.String("case", req.CaseNumber),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
	)
	return *content, nil
}

// LoadedModel returns the first model the server reports. A reachable
// server with nothing loaded is an error.
func (o *OpenAI) LoadedModel(ctx context.Context) (string, error) {
	models, err := o.client.ListModels(ctx)
	if err != nil {
		return "", eris.Wrap(err, "inference: list models")
	}
	if len(models.Data) == 0 {
		return "", eris.New("inference: server is running but no model is loaded")
	}
	return models.Data[0].ID, nil
}
