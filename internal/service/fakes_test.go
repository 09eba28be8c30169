package service

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/lyceum-portal/internal/errs"
	"github.com/and161185/lyceum-portal/internal/limiter"
	"github.com/and161185/lyceum-portal/internal/model"
	"github.com/and161185/lyceum-portal/internal/repository"
	"github.com/gofrs/uuid/v5"
)

/************ admins ************/

type fakeAdmins struct {
	mu     sync.Mutex
	byName map[string]*model.AdminCredential

	getCalls  int
	touched   map[uuid.UUID]time.Time
	createErr error
	getErr    error
}

var _ repository.AdminRepository = (*fakeAdmins)(nil)

func (f *fakeAdmins) Create(_ context.Context, a *model.AdminCredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.byName == nil {
		f.byName = map[string]*model.AdminCredential{}
	}
	if _, ok := f.byName[a.Username]; ok {
		return errs.ErrAlreadyExists
	}
	cpy := *a
	f.byName[a.Username] = &cpy
	return nil
}

func (f *fakeAdmins) GetActiveByUsername(_ context.Context, username string) (*model.AdminCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byName[username]
	if !ok || !a.IsActive {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAdmins) GetByID(_ context.Context, id uuid.UUID) (*model.AdminCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byName {
		if a.ID == id {
			c := *a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAdmins) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touched == nil {
		f.touched = map[uuid.UUID]time.Time{}
	}
	f.touched[id] = at
	return nil
}

/************ accounts ************/

type fakeAccounts struct {
	mu    sync.Mutex
	byTG  map[int64]*model.Account
	roles map[uuid.UUID]map[model.Role]bool

	inserts int
	// beforeInsert runs before CreateIfAbsent applies; used to simulate a concurrent writer.
	beforeInsert func(f *fakeAccounts)
	// conflictAsError makes a lost insert return errs.ErrAlreadyExists instead of created=false.
	conflictAsError bool
	getErr          error
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byTG: map[int64]*model.Account{}, roles: map[uuid.UUID]map[model.Role]bool{}}
}

func (f *fakeAccounts) put(a *model.Account) {
	c := *a
	f.byTG[a.TelegramID] = &c
}

func (f *fakeAccounts) GetByTelegramID(_ context.Context, tg int64) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.byTG[tg]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccounts) CreateIfAbsent(_ context.Context, a *model.Account) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeInsert != nil {
		hook := f.beforeInsert
		f.beforeInsert = nil
		hook(f)
	}
	if _, ok := f.byTG[a.TelegramID]; ok {
		if f.conflictAsError {
			return false, errs.ErrAlreadyExists
		}
		return false, nil
	}
	f.inserts++
	f.put(a)
	return true, nil
}

func (f *fakeAccounts) Roles(_ context.Context, id uuid.UUID) ([]model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Role{}
	for r := range f.roles[id] {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeAccounts) AddRole(_ context.Context, id uuid.UUID, role model.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roles[id] == nil {
		f.roles[id] = map[model.Role]bool{}
	}
	if f.roles[id][role] {
		return false, nil
	}
	f.roles[id][role] = true
	return true, nil
}

func (f *fakeAccounts) SetSelectedRole(_ context.Context, tg int64, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byTG[tg]
	if !ok {
		return errs.ErrNotFound
	}
	a.SelectedRole = &role
	return nil
}

func (f *fakeAccounts) CompleteRegistration(_ context.Context, tg int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byTG[tg]
	if !ok {
		return errs.ErrNotFound
	}
	a.RegistrationCompleted = true
	return nil
}

/************ limiter ************/

// spyLimiter wraps a real limiter and counts calls.
type spyLimiter struct {
	inner    limiter.Limiter
	allows   int
	failures int
	resets   int
}

var _ limiter.Limiter = (*spyLimiter)(nil)

func (s *spyLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	s.allows++
	return s.inner.Allow(ctx, key)
}

func (s *spyLimiter) Failure(ctx context.Context, key string) (int, error) {
	s.failures++
	return s.inner.Failure(ctx, key)
}

func (s *spyLimiter) Success(ctx context.Context, key string) error {
	s.resets++
	return s.inner.Success(ctx, key)
}

/************ clock ************/

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)} }
