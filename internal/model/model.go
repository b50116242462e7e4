// Package model defines domain entities used by the pipeline, services and repositories.
package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/outfit-studio/internal/errs"
)

// Mode selects the generation strategy for one submission.
type Mode string

const (
	ModeAIModel     Mode = "ai-model"     // new model generated from a description
	ModeCustomModel Mode = "custom-model" // garment transferred onto a supplied person
	ModeFlatLay     Mode = "flat-lay"     // studio flat-lay, no model
)

// Modes lists every supported mode in display order.
var Modes = []Mode{ModeAIModel, ModeCustomModel, ModeFlatLay}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeAIModel, ModeCustomModel, ModeFlatLay:
		return true
	}
	return false
}

// ParseMode accepts the canonical value as well as the upper-case constant names (AI_MODEL, ...).
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	if !m.Valid() {
		return "", errs.Validation("unknown mode %q", s)
	}
	return m, nil
}

// RawImage is an uploaded image blob with the MIME type declared by its source.
type RawImage struct {
	Name     string
	MIMEType string
	Data     []byte
}

// EncodedImage is an API-ready image: supported MIME type plus base64 payload without any data-URL prefix.
type EncodedImage struct {
	MIMEType string
	Data     string
}

// Submission is the raw form state for one generation.
type Submission struct {
	Mode               Mode
	GarmentDescription string
	ModelSpec          string // AI_MODEL only
	Pose               string // AI_MODEL only
	GarmentImage       *RawImage
	ModelImage         *RawImage // CUSTOM_MODEL only
}

// GenerationRequest is a validated submission with normalized images. Immutable once built.
type GenerationRequest struct {
	Mode                Mode
	GarmentDescription  string
	ModelSpec           string
	Pose                string
	GarmentImage        EncodedImage
	ReferenceModelImage *EncodedImage
}

// Part is one element of a request or response: TextPart or ImagePart.
type Part interface {
	isPart()
}

// TextPart carries an instruction or model commentary.
type TextPart struct {
	Text string
}

// ImagePart carries inline image data.
type ImagePart struct {
	Image EncodedImage
}

func (TextPart) isPart()  {}
func (ImagePart) isPart() {}

// Prompt is an assembled request: the global system instruction travels separately from the ordered parts.
type Prompt struct {
	SystemInstruction string
	Parts             []Part
}

// Candidate is one response candidate reduced to typed parts.
type Candidate struct {
	Parts []Part
}

// User represents an account stored by a persistence backend. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	Email     string    // unique, lower-cased
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	CreatedAt time.Time
}

// Account returns the public view of u.
func (u *User) Account() Account {
	return Account{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Account is the identity bound to a session.
type Account struct {
	ID        uuid.UUID
	Username  string
	Email     string
	CreatedAt time.Time
}

// Project is a saved generation result. Never updated in place.
type Project struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID // FK -> users.id
	ImageURL           string    // data URL of the generated image
	GarmentDescription string
	Mode               Mode
	CreatedAt          time.Time
}

// Tokens collects an issued session token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}
