package illustration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"github.com/grimoire/internal/retry"
)

// OpenAIOptions configures the image generator.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	Quality string
	Retry   retry.RetryConfig
}

// OpenAIGenerator generates images through the OpenAI images endpoint.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	size    string
	quality string
	retry   retry.RetryConfig
}

func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(config),
		model:   opts.Model,
		size:    opts.Size,
		quality: opts.Quality,
		retry:   opts.Retry,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	imageReq := openai.ImageRequest{
		Prompt:  req.Prompt,
		Model:   g.model,
		N:       1,
		Size:    g.size,
		Quality: g.quality,
	}
	// gpt-image models always answer in base64 and reject response_format.
	if strings.HasPrefix(g.model, "dall-e") {
		imageReq.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	var data []byte
	logger := log.With().Str("spell", req.Name).Str("model", g.model).Logger()
	result := retry.RetryWithBackoff(ctx, g.retry, func() error {
		resp, err := g.client.CreateImage(ctx, imageReq)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			return errors.New("image response carried no data")
		}
		decoded, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		if err != nil {
			return fmt.Errorf("failed to decode image: %w", err)
		}
		data = decoded
		return nil
	}, &logger)

	if !result.Success {
		return nil, fmt.Errorf("image generation failed after %d attempts: %w", result.Attempts, result.LastError)
	}
	return data, nil
}
