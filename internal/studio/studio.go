// Package studio runs a form submission through image preparation, generation and the project library.
package studio

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
)

// Preparer turns raw form input into a validated request and a prompt.
type Preparer interface {
	Prepare(ctx context.Context, sub model.Submission) (model.GenerationRequest, error)
	Assemble(req model.GenerationRequest) (model.Prompt, error)
}

// Generator sends a prompt to the image model and returns a data URL.
type Generator interface {
	Generate(ctx context.Context, p model.Prompt) (string, error)
}

// Sessions exposes the active account.
type Sessions interface {
	CurrentSession() *model.Account
}

// Library records generated images.
type Library interface {
	SaveProject(ctx context.Context, ownerID uuid.UUID, imageURL, garmentDescription string, mode model.Mode) (model.Project, error)
}

// Result is the outcome of a successful generation.
type Result struct {
	// ImageURL is the generated image as a data URL.
	ImageURL string
	// Project is set when the image was saved to the library.
	Project *model.Project
	// SaveErr reports a failed library save; the image is still valid.
	SaveErr error
}

// Studio wires the pipeline stages together.
type Studio struct {
	prep     Preparer
	gen      Generator
	sessions Sessions
	lib      Library
	log      *zap.Logger
}

// New constructs a Studio. A nil logger disables logging.
func New(prep Preparer, gen Generator, sessions Sessions, lib Library, log *zap.Logger) *Studio {
	if log == nil {
		log = zap.NewNop()
	}
	return &Studio{prep: prep, gen: gen, sessions: sessions, lib: lib, log: log}
}

// Submit generates an image for sub on behalf of the signed-in account.
// Stage errors are returned unchanged. A failed save is logged and reported in Result.SaveErr.
func (s *Studio) Submit(ctx context.Context, sub model.Submission) (Result, error) {
	acc := s.sessions.CurrentSession()
	if acc == nil {
		return Result{}, errs.ErrUnauthorized
	}

	req, err := s.prep.Prepare(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	p, err := s.prep.Assemble(req)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	url, err := s.gen.Generate(ctx, p)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("image generated",
		zap.String("mode", string(req.Mode)),
		zap.String("user_id", acc.ID.String()),
		zap.Duration("took", time.Since(start)),
	)

	res := Result{ImageURL: url}
	proj, err := s.lib.SaveProject(ctx, acc.ID, url, req.GarmentDescription, req.Mode)
	if err != nil {
		s.log.Warn("failed to save project", zap.String("user_id", acc.ID.String()), zap.Error(err))
		res.SaveErr = err
		return res, nil
	}
	res.Project = &proj
	return res, nil
}
