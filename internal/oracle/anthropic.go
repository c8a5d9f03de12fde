package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultModel = "claude-sonnet-4-5-20250929"

type anthropicTransport struct {
	client anthropic.Client
	model  string
}

func newAnthropicTransport(apiKey, model string) *anthropicTransport {
	if model == "" {
		model = defaultModel
	}
	return &anthropicTransport{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (t *anthropicTransport) complete(ctx context.Context, prompt string, images []Image) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(images)+1)
	for _, img := range images {
		encoded := base64.StdEncoding.EncodeToString(img.Bytes)
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIME, encoded))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	message, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", mapProviderError(err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in response", ErrParse)
}

// mapProviderError folds SDK and transport failures into the typed taxonomy.
func mapProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case 429:
			// Billing exhaustion is terminal; request-rate pressure is not.
			if strings.Contains(strings.ToLower(err.Error()), "credit") ||
				strings.Contains(strings.ToLower(err.Error()), "quota") {
				return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
			}
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case 500:
			return fmt.Errorf("%w: %v", ErrInternal, err)
		case 503, 529:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
