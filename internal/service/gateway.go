// Package service implements the persistence gateway: accounts, the active session and saved projects.
package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/session"
)

// Gateway is the storage boundary used by the studio. Exactly one backend is selected at startup.
type Gateway interface {
	// Register creates an account and establishes a session for it.
	Register(ctx context.Context, username, email, password string) (model.Account, error)
	// Login establishes a session for the account matching identifier (username or email).
	Login(ctx context.Context, identifier, password string) (model.Account, error)
	// Logout ends the active session. It is idempotent.
	Logout(ctx context.Context) error
	// CurrentSession returns the active account or nil.
	CurrentSession() *model.Account
	// OnSessionChange subscribes fn to every session establish/destroy.
	OnSessionChange(fn session.Listener) (unsubscribe func())

	// SaveProject records a generated image for ownerID.
	SaveProject(ctx context.Context, ownerID uuid.UUID, imageURL, garmentDescription string, mode model.Mode) (model.Project, error)
	// ListProjects returns the owner's projects, newest first.
	ListProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error)
	// DeleteProject removes one of the session owner's projects.
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

// registration holds sign-up input after trimming and normalization.
type registration struct {
	username string
	email    string
	password string
}

func validateRegistration(username, email, password string) (registration, error) {
	r := registration{
		username: strings.TrimSpace(username),
		email:    strings.ToLower(strings.TrimSpace(email)),
		password: password,
	}
	switch {
	case r.username == "":
		return r, errs.Validation("username is required")
	case strings.Contains(r.username, "@"):
		// login accepts either field, so the two namespaces must not overlap
		return r, errs.Validation("username must not contain @")
	case r.email == "":
		return r, errs.Validation("email is required")
	case strings.TrimSpace(r.password) == "":
		return r, errs.Validation("password is required")
	}
	addr, err := mail.ParseAddress(r.email)
	if err != nil || addr.Address != r.email {
		return r, errs.Validation("malformed email %q", email)
	}
	return r, nil
}

func validateProject(ownerID uuid.UUID, imageURL string, mode model.Mode) error {
	switch {
	case ownerID == uuid.Nil:
		return errs.Validation("project owner is required")
	case strings.TrimSpace(imageURL) == "":
		return errs.Validation("project image is required")
	case !mode.Valid():
		return errs.Validation("unknown mode %q", mode)
	}
	return nil
}

// matchesIdentifier reports whether u is addressed by identifier.
func matchesIdentifier(u *model.User, identifier string) bool {
	return u.Username == identifier || u.Email == strings.ToLower(identifier)
}
