// Package genclient calls the generative image model and extracts the produced image.
package genclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
)

// DefaultModel is the Gemini image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

// contentGenerator is implemented by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures New.
type Options struct {
	APIKey string
	Model  string
	Logger *zap.Logger
}

// Client sends prompts to Gemini. One synchronous call per Generate, no retries.
type Client struct {
	models contentGenerator
	model  string
	log    *zap.Logger
}

// New constructs a Gemini-backed client. A missing API key is reported as errs.ErrMissingCredential.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errs.ErrMissingCredential
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return newClient(c.Models, opts.Model, opts.Logger), nil
}

func newClient(models contentGenerator, modelName string, log *zap.Logger) *Client {
	if modelName == "" {
		modelName = DefaultModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{models: models, model: modelName, log: log}
}

// Generate sends p and returns the first generated image as a data URL.
func (c *Client) Generate(ctx context.Context, p model.Prompt) (string, error) {
	parts, err := toGenaiParts(p.Parts)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var cfg genai.GenerateContentConfig
	if p.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.SystemInstruction, genai.RoleUser)
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &cfg)
	if err != nil {
		c.log.Error("generate content",
			zap.String("model", c.model),
			zap.Int("parts", len(parts)),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %w", errs.ErrGeneration, err)
	}

	cands := toCandidates(resp)
	c.log.Info("generate content",
		zap.String("model", c.model),
		zap.Int("parts", len(parts)),
		zap.Int("candidates", len(cands)),
		zap.Duration("dur", time.Since(start)),
	)

	url, err := ExtractImage(cands)
	if err != nil {
		c.log.Warn("no image in response", zap.Error(err))
		return "", err
	}
	return url, nil
}

func toGenaiParts(in []model.Part) ([]*genai.Part, error) {
	out := make([]*genai.Part, 0, len(in))
	for i, p := range in {
		switch v := p.(type) {
		case model.TextPart:
			out = append(out, genai.NewPartFromText(v.Text))
		case model.ImagePart:
			raw, err := base64.StdEncoding.DecodeString(v.Image.Data)
			if err != nil {
				return nil, errs.Validation("part %d: image payload is not base64: %v", i, err)
			}
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: v.Image.MIMEType, Data: raw}})
		default:
			return nil, errs.Validation("part %d: unsupported part %T", i, p)
		}
	}
	return out, nil
}
