package memory

import (
	"context"
	"sort"

	"pathak/internal/account"
)

type accountRepository struct {
	db *DB
}

// NewAccountRepository returns an account.Repository over db.
func NewAccountRepository(db *DB) account.Repository {
	return &accountRepository{db: db}
}

func (r *accountRepository) CreateUser(_ context.Context, u account.User) (account.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return account.User{}, account.ErrEmailInUse
		}
	}
	r.db.users[u.UID] = u
	return u, nil
}

func (r *accountRepository) GetUser(_ context.Context, uid string) (account.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if u, ok := r.db.users[uid]; ok {
		return u, nil
	}
	return account.User{}, account.ErrUserNotFound
}

func (r *accountRepository) GetUserByEmail(_ context.Context, email string) (account.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return account.User{}, account.ErrUserNotFound
}

func (r *accountRepository) ListUsers(_ context.Context, f account.Filter) ([]account.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]account.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.RebindRequested && !u.RebindRequest {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (r *accountRepository) SetDevice(_ context.Context, uid, deviceID string) error {
	return r.update(uid, func(u *account.User) { u.DeviceID = deviceID })
}

func (r *accountRepository) SetRebindRequest(_ context.Context, uid string, requested bool) error {
	return r.update(uid, func(u *account.User) { u.RebindRequest = requested })
}

func (r *accountRepository) update(uid string, fn func(*account.User)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[uid]
	if !ok {
		return account.ErrUserNotFound
	}
	fn(&u)
	r.db.users[uid] = u
	return nil
}
