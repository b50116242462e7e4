// Package prompt validates generation submissions and builds the ordered request parts for each mode.
package prompt

import (
	"context"
	"strings"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
)

// Normalizer encodes a raw upload for the generation service.
type Normalizer interface {
	Normalize(ctx context.Context, raw model.RawImage) (model.EncodedImage, error)
}

// Assembler turns submissions into prompts.
type Assembler struct {
	norm   Normalizer
	system string
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithSystemInstruction replaces the global system instruction.
func WithSystemInstruction(s string) Option {
	return func(a *Assembler) { a.system = s }
}

// NewAssembler constructs an Assembler that normalizes images with norm.
func NewAssembler(norm Normalizer, opts ...Option) *Assembler {
	a := &Assembler{norm: norm, system: SystemInstruction}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Prepare validates sub and normalizes the images the mode needs.
// Nothing is decoded when validation fails.
func (a *Assembler) Prepare(ctx context.Context, sub model.Submission) (model.GenerationRequest, error) {
	if err := validate(sub.Mode, sub.GarmentImage != nil, sub.GarmentDescription, sub.ModelSpec, sub.Pose, sub.ModelImage != nil); err != nil {
		return model.GenerationRequest{}, err
	}

	garment, err := a.norm.Normalize(ctx, *sub.GarmentImage)
	if err != nil {
		return model.GenerationRequest{}, err
	}
	req := model.GenerationRequest{
		Mode:               sub.Mode,
		GarmentDescription: strings.TrimSpace(sub.GarmentDescription),
		GarmentImage:       garment,
	}

	switch sub.Mode {
	case model.ModeAIModel:
		req.ModelSpec = strings.TrimSpace(sub.ModelSpec)
		req.Pose = strings.TrimSpace(sub.Pose)
	case model.ModeCustomModel:
		ref, err := a.norm.Normalize(ctx, *sub.ModelImage)
		if err != nil {
			return model.GenerationRequest{}, err
		}
		req.ReferenceModelImage = &ref
	}
	return req, nil
}

// Assemble builds the ordered parts for req: the mode's instruction text first, then the garment image,
// then (CUSTOM_MODEL only) the reference model image.
func (a *Assembler) Assemble(req model.GenerationRequest) (model.Prompt, error) {
	hasGarment := req.GarmentImage.Data != ""
	if err := validate(req.Mode, hasGarment, req.GarmentDescription, req.ModelSpec, req.Pose, req.ReferenceModelImage != nil && req.ReferenceModelImage.Data != ""); err != nil {
		return model.Prompt{}, err
	}

	var text string
	switch req.Mode {
	case model.ModeAIModel:
		text = aiModelText(req)
	case model.ModeCustomModel:
		text = customModelText(req)
	case model.ModeFlatLay:
		text = flatLayText(req)
	}

	parts := []model.Part{
		model.TextPart{Text: text},
		model.ImagePart{Image: req.GarmentImage},
	}
	if req.Mode == model.ModeCustomModel {
		parts = append(parts, model.ImagePart{Image: *req.ReferenceModelImage})
	}
	return model.Prompt{SystemInstruction: a.system, Parts: parts}, nil
}

// validate checks the garment image first, then the mode, the description and the mode-specific fields.
func validate(mode model.Mode, hasGarment bool, description, modelSpec, pose string, hasModelImage bool) error {
	if !hasGarment {
		return errs.Validation("garment image is required")
	}
	if !mode.Valid() {
		return errs.Validation("unknown mode %q", mode)
	}
	if blank(description) {
		return errs.Validation("garment description is required")
	}
	switch mode {
	case model.ModeAIModel:
		if blank(modelSpec) {
			return errs.Validation("model details are required for %s", mode)
		}
		if blank(pose) {
			return errs.Validation("pose is required for %s", mode)
		}
	case model.ModeCustomModel:
		if !hasModelImage {
			return errs.Validation("model photo is required for %s", mode)
		}
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
