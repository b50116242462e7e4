package service

import (
	"context"
	"io/fs"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/outfit-studio/internal/errs"
	"github.com/and161185/outfit-studio/internal/limiter"
	"github.com/and161185/outfit-studio/internal/model"
	"github.com/and161185/outfit-studio/internal/repository"
	"github.com/and161185/outfit-studio/internal/session"
)

type fakeUsers struct {
	mu   sync.Mutex
	rows []model.User

	createErr error
	getErr    error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range f.rows {
		if r.Username == u.Username || r.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	u.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, *u)
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.rows {
		if r.ID == id {
			c := r
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.rows {
		if r.Username == identifier || r.Email == strings.ToLower(identifier) {
			c := r
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

type fakeProjects struct {
	mu   sync.Mutex
	rows []model.Project

	createErr error
}

var _ repository.ProjectRepository = (*fakeProjects)(nil)

func (f *fakeProjects) Create(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	p.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, *p)
	return nil
}

func (f *fakeProjects) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Project{}
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].OwnerID == ownerID {
			out = append(out, f.rows[i])
		}
	}
	slices.SortStableFunc(out, func(a, b model.Project) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (f *fakeProjects) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := slices.IndexFunc(f.rows, func(p model.Project) bool { return p.ID == id && p.OwnerID == ownerID })
	if idx < 0 {
		return errs.ErrNotFound
	}
	f.rows = slices.Delete(f.rows, idx, idx+1)
	return nil
}

type fakeLimiter struct {
	mu sync.Mutex

	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
	lastKey      string
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, key string, _ []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowCalls++
	l.lastKey = key
	return l.allowOK, time.Minute, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successCalls++
	return l.successErr
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

type memTokens struct {
	mu     sync.Mutex
	tok    *model.Tokens
	clears int
}

var _ session.TokenStore = (*memTokens)(nil)

func (m *memTokens) Save(tok model.Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *memTokens) Load() (model.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return model.Tokens{}, fs.ErrNotExist
	}
	return *m.tok, nil
}

func (m *memTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	m.clears++
	return nil
}

func (m *memTokens) stored() *model.Tokens {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tok
}

// recorder collects session notifications.
type recorder struct {
	mu     sync.Mutex
	events []*model.Account
}

func (r *recorder) listen(acc *model.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, acc)
}

func (r *recorder) snapshot() []*model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Account(nil), r.events...)
}
