package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/outfit-studio/internal/crypto"
	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/repository/localstore"
	"github.com/and161185/outfit-studio/internal/session"
)

// localUser is the users slot record.
type localUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	PwdHash   []byte    `json:"pwd_hash"`
	SaltAuth  []byte    `json:"salt_auth"`
	CreatedAt time.Time `json:"created_at"`
}

func (u localUser) toModel() model.User {
	return model.User{ID: u.ID, Username: u.Username, Email: u.Email, PwdHash: u.PwdHash, SaltAuth: u.SaltAuth, CreatedAt: u.CreatedAt}
}

// localProject is the projects slot record.
type localProject struct {
	ID                 uuid.UUID  `json:"id"`
	OwnerID            uuid.UUID  `json:"owner_id"`
	ImageURL           string     `json:"image_url"`
	GarmentDescription string     `json:"garment_description"`
	Mode               model.Mode `json:"mode"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (p localProject) toModel() model.Project {
	return model.Project{ID: p.ID, OwnerID: p.OwnerID, ImageURL: p.ImageURL, GarmentDescription: p.GarmentDescription, Mode: p.Mode, CreatedAt: p.CreatedAt}
}

// localSession is the session slot: a pointer into the users slot.
type localSession struct {
	UserID uuid.UUID `json:"user_id"`
}

// LocalGateway keeps accounts, the session pointer and projects in device-local slots.
type LocalGateway struct {
	mu    sync.Mutex
	store *localstore.Store
	hub   *session.Hub
	log   *zap.Logger
	now   func() time.Time
}

var _ Gateway = (*LocalGateway)(nil)

// NewLocalGateway restores a persisted session, if any, without notifying listeners.
// A session pointing at a vanished account is dropped.
func NewLocalGateway(store *localstore.Store, hub *session.Hub, log *zap.Logger) (*LocalGateway, error) {
	if hub == nil {
		hub = session.NewHub()
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &LocalGateway{store: store, hub: hub, log: log, now: time.Now}

	var ptr localSession
	ok, err := store.Load(localstore.SlotSession, &ptr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return g, nil
	}
	users, err := g.loadUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == ptr.UserID {
			u := users[i].toModel()
			acc := u.Account()
			hub.Restore(&acc)
			log.Debug("session restored", zap.String("user_id", u.ID.String()))
			return g, nil
		}
	}
	log.Warn("dropping session for unknown account", zap.String("user_id", ptr.UserID.String()))
	if err := store.Remove(localstore.SlotSession); err != nil {
		return nil, err
	}
	return g, nil
}

// Register creates an account in the users slot and signs it in.
func (g *LocalGateway) Register(_ context.Context, username, email, password string) (model.Account, error) {
	reg, err := validateRegistration(username, email, password)
	if err != nil {
		return model.Account{}, err
	}

	g.mu.Lock()
	users, err := g.loadUsers()
	if err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	for _, u := range users {
		if u.Username == reg.username || u.Email == reg.email {
			g.mu.Unlock()
			return model.Account{}, fmt.Errorf("%w: username or email is taken", errs.ErrAlreadyExists)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	hash, salt, err := pkgcrypto.NewCredential(reg.password)
	if err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	rec := localUser{
		ID:        id,
		Username:  reg.username,
		Email:     reg.email,
		PwdHash:   hash,
		SaltAuth:  salt,
		CreatedAt: g.now().UTC(),
	}
	if err := g.store.Save(localstore.SlotUsers, append(users, rec)); err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	if err := g.store.Save(localstore.SlotSession, localSession{UserID: id}); err != nil {
		// drop the account so a retry is not rejected as a duplicate
		if rbErr := g.store.Save(localstore.SlotUsers, users); rbErr != nil {
			g.log.Warn("roll back registration", zap.String("user_id", id.String()), zap.Error(rbErr))
		}
		g.mu.Unlock()
		return model.Account{}, fmt.Errorf("store session: %w", err)
	}
	g.mu.Unlock()

	u := rec.toModel()
	acc := u.Account()
	g.log.Info("account registered", zap.String("user_id", id.String()))
	g.hub.Set(&acc)
	return acc, nil
}

// Login verifies the password of the account matching identifier and signs it in.
func (g *LocalGateway) Login(_ context.Context, identifier, password string) (model.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return model.Account{}, errs.Validation("identifier and password are required")
	}

	g.mu.Lock()
	users, err := g.loadUsers()
	if err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	var found *model.User
	for i := range users {
		u := users[i].toModel()
		if matchesIdentifier(&u, identifier) {
			found = &u
			break
		}
	}
	if found == nil || !pkgcrypto.VerifyPassword([]byte(password), found.SaltAuth, found.PwdHash) {
		g.mu.Unlock()
		return model.Account{}, errs.ErrUnauthorized
	}
	if err := g.store.Save(localstore.SlotSession, localSession{UserID: found.ID}); err != nil {
		g.mu.Unlock()
		return model.Account{}, err
	}
	g.mu.Unlock()

	acc := found.Account()
	g.hub.Set(&acc)
	return acc, nil
}

// Logout clears the session slot. Listeners hear about it only if a session was active.
func (g *LocalGateway) Logout(context.Context) error {
	g.mu.Lock()
	err := g.store.Remove(localstore.SlotSession)
	g.mu.Unlock()
	if err != nil {
		return err
	}
	g.hub.Set(nil)
	return nil
}

// CurrentSession returns the signed-in account, or nil.
func (g *LocalGateway) CurrentSession() *model.Account { return g.hub.Current() }

// OnSessionChange subscribes fn to session changes.
func (g *LocalGateway) OnSessionChange(fn session.Listener) func() { return g.hub.Subscribe(fn) }

// SaveProject appends a project to the projects slot.
func (g *LocalGateway) SaveProject(_ context.Context, ownerID uuid.UUID, imageURL, garmentDescription string, mode model.Mode) (model.Project, error) {
	if err := validateProject(ownerID, imageURL, mode); err != nil {
		return model.Project{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Project{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	users, err := g.loadUsers()
	if err != nil {
		return model.Project{}, err
	}
	if !slices.ContainsFunc(users, func(u localUser) bool { return u.ID == ownerID }) {
		return model.Project{}, fmt.Errorf("project owner %s: %w", ownerID, errs.ErrNotFound)
	}

	projects, err := g.loadProjects()
	if err != nil {
		return model.Project{}, err
	}
	rec := localProject{
		ID:                 id,
		OwnerID:            ownerID,
		ImageURL:           imageURL,
		GarmentDescription: garmentDescription,
		Mode:               mode,
		CreatedAt:          g.now().UTC(),
	}
	if err := g.store.Save(localstore.SlotProjects, append(projects, rec)); err != nil {
		return model.Project{}, err
	}
	return rec.toModel(), nil
}

// ListProjects returns the owner's projects, newest first; equal timestamps keep the later insert first.
func (g *LocalGateway) ListProjects(_ context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	g.mu.Lock()
	projects, err := g.loadProjects()
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := []model.Project{}
	for i := len(projects) - 1; i >= 0; i-- {
		if projects[i].OwnerID == ownerID {
			out = append(out, projects[i].toModel())
		}
	}
	slices.SortStableFunc(out, func(a, b model.Project) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// DeleteProject removes a project owned by the signed-in account.
func (g *LocalGateway) DeleteProject(_ context.Context, id uuid.UUID) error {
	acc := g.hub.Current()
	if acc == nil {
		return errs.ErrUnauthorized
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	projects, err := g.loadProjects()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(projects, func(p localProject) bool { return p.ID == id && p.OwnerID == acc.ID })
	if idx < 0 {
		return fmt.Errorf("project %s: %w", id, errs.ErrNotFound)
	}
	return g.store.Save(localstore.SlotProjects, slices.Delete(projects, idx, idx+1))
}

func (g *LocalGateway) loadUsers() ([]localUser, error) {
	var users []localUser
	if _, err := g.store.Load(localstore.SlotUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (g *LocalGateway) loadProjects() ([]localProject, error) {
	var projects []localProject
	if _, err := g.store.Load(localstore.SlotProjects, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}
