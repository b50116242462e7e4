package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/outfit-studio/internal/model"
)

// TokenStore persists the remote session token between runs.
type TokenStore interface {
	Save(tok model.Tokens) error
	// Load returns fs.ErrNotExist when no token is stored.
	Load() (model.Tokens, error)
	Clear() error
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenFile stores the token as JSON at Path.
type TokenFile struct {
	Path string
}

var _ TokenStore = (*TokenFile)(nil)

// NewTokenFile constructs a TokenFile.
func NewTokenFile(path string) *TokenFile { return &TokenFile{Path: path} }

// Save writes tok with owner-only permissions.
func (t *TokenFile) Save(tok model.Tokens) error {
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(t.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt})
}

// Load reads the stored token. Expiry is not checked here.
func (t *TokenFile) Load() (model.Tokens, error) {
	b, err := os.ReadFile(t.Path)
	if err != nil {
		return model.Tokens{}, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return model.Tokens{}, err
	}
	if tf.AccessToken == "" {
		return model.Tokens{}, fs.ErrNotExist
	}
	return model.Tokens{AccessToken: tf.AccessToken, ExpiresAt: tf.ExpiresAt}, nil
}

// Clear removes the token; a missing file is not an error.
func (t *TokenFile) Clear() error {
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
