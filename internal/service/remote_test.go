package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	pkgcrypto "github.com/and161185/outfit-studio/internal/crypto"
	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/session"
)

var testKey = []byte("secret")

func seededUser(t *testing.T, username, email, password string) model.User {
	t.Helper()
	hash, salt, err := pkgcrypto.NewCredential(password)
	require.NoError(t, err)
	return model.User{
		ID:        uuid.Must(uuid.NewV4()),
		Username:  username,
		Email:     email,
		PwdHash:   hash,
		SaltAuth:  salt,
		CreatedAt: time.Now().UTC(),
	}
}

func signToken(t *testing.T, key []byte, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

type remoteFixture struct {
	users    *fakeUsers
	projects *fakeProjects
	lim      *fakeLimiter
	tokens   *memTokens
	hub      *session.Hub
}

func newRemoteFixture() *remoteFixture {
	return &remoteFixture{
		users:    &fakeUsers{},
		projects: &fakeProjects{},
		lim:      &fakeLimiter{allowOK: true},
		tokens:   &memTokens{},
		hub:      session.NewHub(),
	}
}

func (f *remoteFixture) gateway(t *testing.T, ttl time.Duration) *RemoteGateway {
	t.Helper()
	g, err := NewRemoteGateway(context.Background(), RemoteOptions{
		Users:      f.users,
		Projects:   f.projects,
		Limiter:    f.lim,
		Tokens:     f.tokens,
		Hub:        f.hub,
		SignKey:    testKey,
		SessionTTL: ttl,
		ClientID:   "laptop",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Logout(context.Background()) })
	return g
}

func TestRemote_New_RequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewRemoteGateway(context.Background(), RemoteOptions{})
	require.Error(t, err)

	f := newRemoteFixture()
	_, err = NewRemoteGateway(context.Background(), RemoteOptions{
		Users: f.users, Projects: f.projects, Limiter: f.lim, Tokens: f.tokens,
	})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestRemote_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newRemoteFixture()
	u := seededUser(t, "alice", "alice@example.com", "correct")
	f.users.rows = append(f.users.rows, u)
	g := f.gateway(t, time.Hour)

	f.lim.allowErr = errors.New("lim-err")
	_, err := g.Login(ctx, "alice", "correct")
	require.Error(t, err)
	f.lim.allowErr = nil

	f.lim.allowOK = false
	_, err = g.Login(ctx, "alice", "correct")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	f.lim.allowOK = true

	_, err = g.Login(ctx, "nope", "x")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	f.lim.failBlocked = true
	_, err = g.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	f.lim.failBlocked = false

	_, err = g.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Nil(t, g.CurrentSession())

	f.users.getErr = errors.New("db down")
	_, err = g.Login(ctx, "alice", "correct")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrUnauthorized)
	f.users.getErr = nil

	acc, err := g.Login(ctx, "Alice@Example.com", "correct")
	require.NoError(t, err)
	require.Equal(t, u.ID, acc.ID)
	require.Equal(t, 1, f.lim.successCalls)
	require.Equal(t, "alice@example.com", f.lim.lastKey)

	tok := f.tokens.stored()
	require.NotNil(t, tok)
	require.NotEmpty(t, tok.AccessToken)
	require.True(t, tok.ExpiresAt.After(time.Now()))
}

func TestRemote_RestoresValidToken(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	u := seededUser(t, "alice", "alice@example.com", "pw")
	f.users.rows = append(f.users.rows, u)
	exp := time.Now().Add(time.Hour)
	f.tokens.tok = &model.Tokens{AccessToken: signToken(t, testKey, u.ID.String(), exp), ExpiresAt: exp}

	rec := &recorder{}
	f.hub.Subscribe(rec.listen)
	g := f.gateway(t, time.Hour)

	cur := g.CurrentSession()
	require.NotNil(t, cur)
	require.Equal(t, u.ID, cur.ID)
	require.Empty(t, rec.snapshot())
}

func TestRemote_DiscardsUnusableTokens(t *testing.T) {
	t.Parallel()
	u := seededUser(t, "alice", "alice@example.com", "pw")
	cases := map[string]string{
		"expired":    signToken(t, testKey, u.ID.String(), time.Now().Add(-time.Hour)),
		"foreign":    signToken(t, []byte("other-key"), u.ID.String(), time.Now().Add(time.Hour)),
		"bad-sub":    signToken(t, testKey, "not-a-uuid", time.Now().Add(time.Hour)),
		"no-account": signToken(t, testKey, uuid.Must(uuid.NewV4()).String(), time.Now().Add(time.Hour)),
		"garbage":    "x.y.z",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			f := newRemoteFixture()
			f.users.rows = append(f.users.rows, u)
			f.tokens.tok = &model.Tokens{AccessToken: raw}

			g := f.gateway(t, time.Hour)
			require.Nil(t, g.CurrentSession())
			require.Nil(t, f.tokens.stored())
		})
	}
}

func TestRemote_RestoreFailsOnRepositoryError(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	u := seededUser(t, "alice", "alice@example.com", "pw")
	f.users.rows = append(f.users.rows, u)
	f.users.getErr = errors.New("db down")
	f.tokens.tok = &model.Tokens{AccessToken: signToken(t, testKey, u.ID.String(), time.Now().Add(time.Hour))}

	_, err := NewRemoteGateway(context.Background(), RemoteOptions{
		Users: f.users, Projects: f.projects, Limiter: f.lim, Tokens: f.tokens, SignKey: testKey,
	})
	require.Error(t, err)
	require.NotNil(t, f.tokens.stored(), "token kept for a later retry")
}

func TestRemote_ExpiryDestroysSessionAndNotifies(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	g := f.gateway(t, 50*time.Millisecond)

	ended := make(chan struct{}, 1)
	g.OnSessionChange(func(acc *model.Account) {
		if acc == nil {
			ended <- struct{}{}
		}
	})

	_, err := g.Register(context.Background(), "ann", "ann@example.com", "pw")
	require.NoError(t, err)
	require.NotNil(t, g.CurrentSession())

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not expire")
	}
	require.Nil(t, g.CurrentSession())
	require.Nil(t, f.tokens.stored())
}

func TestRemote_ExpiryKeepsSessionEstablishedMeanwhile(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	g := f.gateway(t, time.Hour)
	rec := &recorder{}
	g.OnSessionChange(rec.listen)

	ann, err := g.Register(context.Background(), "ann", "ann@example.com", "pw")
	require.NoError(t, err)
	expiring := g.hub.Restore(&ann)

	// the timer passed its gen check, then a login replaced the session
	g.mu.Lock()
	gen := g.gen
	g.mu.Unlock()
	bob := model.Account{ID: uuid.Must(uuid.NewV4()), Username: "bob"}
	g.hub.Set(&bob)

	g.expire(gen, expiring)
	cur := g.CurrentSession()
	require.NotNil(t, cur)
	require.Equal(t, bob.ID, cur.ID)
	for _, acc := range rec.snapshot() {
		require.NotNil(t, acc, "no logout notification for the replaced session")
	}
}

func TestRemote_LogoutStopsExpiryTimer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newRemoteFixture()
	g := f.gateway(t, 50*time.Millisecond)
	rec := &recorder{}
	g.OnSessionChange(rec.listen)

	_, err := g.Register(ctx, "ann", "ann@example.com", "pw")
	require.NoError(t, err)
	require.NoError(t, g.Logout(ctx))

	time.Sleep(150 * time.Millisecond)
	ev := rec.snapshot()
	require.Len(t, ev, 2)
	require.Nil(t, ev[1])
}

func TestRemote_SaveProjectRepositoryError(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	g := f.gateway(t, time.Hour)
	f.projects.createErr = errs.ErrNotFound

	_, err := g.SaveProject(context.Background(), uuid.Must(uuid.NewV4()), "data:x", "d", model.ModeFlatLay)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemote_RegisterRepositoryError(t *testing.T) {
	t.Parallel()
	f := newRemoteFixture()
	g := f.gateway(t, time.Hour)
	f.users.createErr = errors.New("boom")

	_, err := g.Register(context.Background(), "bob", "bob@example.com", "pw")
	require.Error(t, err)
	require.Nil(t, g.CurrentSession())
	require.Nil(t, f.tokens.stored())
}
