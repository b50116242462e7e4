package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/outfit-studio/internal/crypto"
	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/limiter"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/repository"
	"github.com/and161185/outfit-studio/internal/session"
)

// DefaultSessionTTL is the lifetime of a remote session token.
const DefaultSessionTTL = 24 * time.Hour

// RemoteOptions wires the remote gateway.
type RemoteOptions struct {
	Users    repository.UserRepository
	Projects repository.ProjectRepository
	Limiter  limiter.Limiter
	Tokens   session.TokenStore
	Hub      *session.Hub
	Logger   *zap.Logger

	// SignKey is the HS256 key for session tokens.
	SignKey []byte
	// SessionTTL defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// ClientID identifies this device to the sign-in limiter.
	ClientID string
}

// RemoteGateway stores accounts and projects in Postgres and keeps the session as a signed token.
type RemoteGateway struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	lim      limiter.Limiter
	tokens   session.TokenStore
	hub      *session.Hub
	log      *zap.Logger

	signKey    []byte
	ttl        time.Duration
	clientHash []byte
	now        func() time.Time

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

var _ Gateway = (*RemoteGateway)(nil)

// NewRemoteGateway restores the stored token when it is still valid and its account exists.
func NewRemoteGateway(ctx context.Context, o RemoteOptions) (*RemoteGateway, error) {
	if o.Users == nil || o.Projects == nil || o.Limiter == nil || o.Tokens == nil {
		return nil, errors.New("remote gateway: missing dependency")
	}
	if len(o.SignKey) == 0 {
		return nil, errs.Validation("empty session signing key")
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.Hub == nil {
		o.Hub = session.NewHub()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	g := &RemoteGateway{
		users:      o.Users,
		projects:   o.Projects,
		lim:        o.Limiter,
		tokens:     o.Tokens,
		hub:        o.Hub,
		log:        o.Logger,
		signKey:    o.SignKey,
		ttl:        o.SessionTTL,
		clientHash: limiter.HashClient(o.ClientID),
		now:        time.Now,
	}
	if err := g.restore(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *RemoteGateway) restore(ctx context.Context) error {
	tok, err := g.tokens.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		g.log.Warn("unreadable session token, discarding", zap.Error(err))
		return g.tokens.Clear()
	}
	userID, exp, err := g.parseToken(tok.AccessToken)
	if err != nil {
		g.log.Info("stored session is no longer valid", zap.Error(err))
		return g.tokens.Clear()
	}
	u, err := g.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		g.log.Warn("dropping session for unknown account", zap.String("user_id", userID.String()))
		return g.tokens.Clear()
	}
	if err != nil {
		return err
	}

	acc := u.Account()
	ver := g.hub.Restore(&acc)
	g.mu.Lock()
	g.armLocked(exp, ver)
	g.mu.Unlock()
	return nil
}

// Register creates the account row and signs it in.
func (g *RemoteGateway) Register(ctx context.Context, username, email, password string) (model.Account, error) {
	reg, err := validateRegistration(username, email, password)
	if err != nil {
		return model.Account{}, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.Account{}, err
	}
	hash, salt, err := pkgcrypto.NewCredential(reg.password)
	if err != nil {
		return model.Account{}, err
	}
	u := &model.User{
		ID:       uid,
		Username: reg.username,
		Email:    reg.email,
		PwdHash:  hash,
		SaltAuth: salt,
	}
	if err := g.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Account{}, fmt.Errorf("%w: username or email is taken", errs.ErrAlreadyExists)
		}
		return model.Account{}, err
	}
	g.log.Info("account registered", zap.String("user_id", uid.String()))
	return g.establish(u)
}

// Login authenticates with rate limiting by (identifier, client).
func (g *RemoteGateway) Login(ctx context.Context, identifier, password string) (model.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return model.Account{}, errs.Validation("identifier and password are required")
	}
	key := strings.ToLower(identifier)

	allowed, retry, err := g.lim.Allow(ctx, key, g.clientHash)
	if err != nil {
		return model.Account{}, err
	}
	if !allowed {
		return model.Account{}, fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry.Round(time.Second))
	}

	u, err := g.users.GetByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Account{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := g.lim.Failure(ctx, key, g.clientHash); ferr != nil {
			g.log.Warn("limiter failure not recorded", zap.Error(ferr))
		} else if blocked {
			return model.Account{}, errs.ErrRateLimited
		}
		// unknown account and wrong password look the same
		return model.Account{}, errs.ErrUnauthorized
	}

	if err := g.lim.Success(ctx, key, g.clientHash); err != nil {
		g.log.Warn("limiter reset failed", zap.Error(err))
	}
	return g.establish(u)
}

// Logout clears the stored token and stops the expiry timer.
func (g *RemoteGateway) Logout(context.Context) error {
	g.mu.Lock()
	g.disarmLocked()
	err := g.tokens.Clear()
	g.mu.Unlock()
	if err != nil {
		return err
	}
	g.hub.Set(nil)
	return nil
}

// CurrentSession returns the signed-in account, or nil.
func (g *RemoteGateway) CurrentSession() *model.Account { return g.hub.Current() }

// OnSessionChange subscribes fn to session changes, including token expiry.
func (g *RemoteGateway) OnSessionChange(fn session.Listener) func() { return g.hub.Subscribe(fn) }

// SaveProject inserts a project row.
func (g *RemoteGateway) SaveProject(ctx context.Context, ownerID uuid.UUID, imageURL, garmentDescription string, mode model.Mode) (model.Project, error) {
	if err := validateProject(ownerID, imageURL, mode); err != nil {
		return model.Project{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Project{}, err
	}
	p := model.Project{
		ID:                 id,
		OwnerID:            ownerID,
		ImageURL:           imageURL,
		GarmentDescription: garmentDescription,
		Mode:               mode,
	}
	if err := g.projects.Create(ctx, &p); err != nil {
		return model.Project{}, fmt.Errorf("save project: %w", err)
	}
	return p, nil
}

// ListProjects returns the owner's projects, newest first.
func (g *RemoteGateway) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	return g.projects.ListByOwner(ctx, ownerID)
}

// DeleteProject removes a project owned by the signed-in account.
func (g *RemoteGateway) DeleteProject(ctx context.Context, id uuid.UUID) error {
	acc := g.hub.Current()
	if acc == nil {
		return errs.ErrUnauthorized
	}
	if err := g.projects.Delete(ctx, acc.ID, id); err != nil {
		return fmt.Errorf("project %s: %w", id, err)
	}
	return nil
}

// establish issues and stores a token for u, arms the expiry timer and notifies listeners.
func (g *RemoteGateway) establish(u *model.User) (model.Account, error) {
	access, exp, err := g.issueAccessToken(u.ID)
	if err != nil {
		return model.Account{}, err
	}

	g.mu.Lock()
	if err := g.tokens.Save(model.Tokens{AccessToken: access, ExpiresAt: exp}); err != nil {
		g.mu.Unlock()
		return model.Account{}, fmt.Errorf("store session: %w", err)
	}
	g.disarmLocked()
	gen := g.gen
	g.mu.Unlock()

	acc := u.Account()
	ver := g.hub.Set(&acc)

	// listeners must see the session before its expiry
	g.mu.Lock()
	if gen == g.gen {
		g.armLocked(exp, ver)
	}
	g.mu.Unlock()
	return acc, nil
}

// armLocked replaces the expiry timer for the hub session ver. Caller holds g.mu.
func (g *RemoteGateway) armLocked(exp time.Time, ver uint64) {
	g.disarmLocked()
	gen := g.gen
	g.timer = time.AfterFunc(exp.Sub(g.now()), func() { g.expire(gen, ver) })
}

// disarmLocked stops the expiry timer and invalidates any callback already in flight. Caller holds g.mu.
func (g *RemoteGateway) disarmLocked() {
	g.gen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// expire ends session ver. A login that lands after the gen check but before
// the hub update has replaced ver, so ClearIf leaves it alone.
func (g *RemoteGateway) expire(gen, ver uint64) {
	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	if err := g.tokens.Clear(); err != nil {
		g.log.Warn("clear expired session token", zap.Error(err))
	}
	g.mu.Unlock()

	if g.hub.ClearIf(ver) {
		g.log.Info("session expired")
	}
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (g *RemoteGateway) issueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(g.signKey)
	return signed, exp, err
}

// parseToken validates signature and expiry and returns the subject and expiry time.
func (g *RemoteGateway) parseToken(tok string) (uuid.UUID, time.Time, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return g.signKey, nil
	}, jwt.WithTimeFunc(g.now), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return uuid.Nil, time.Time{}, errors.New("invalid token")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, time.Time{}, errors.New("bad subject")
	}
	return id, claims.ExpiresAt.Time, nil
}
