package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pathak/internal/account"
)

// AccountRepository persists users.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const userColumns = `uid, full_name, email, password_hash, role, COALESCE(device_id, ''), is_super_admin, is_scorer, rebind_request, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (account.User, error) {
	var u account.User
	err := row.Scan(&u.UID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.DeviceID,
		&u.IsSuperAdmin, &u.IsScorer, &u.RebindRequest, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account.User{}, account.ErrUserNotFound
	}
	return u, err
}

func (r *AccountRepository) CreateUser(ctx context.Context, u account.User) (account.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (uid, full_name, email, password_hash, role, device_id, is_super_admin, is_scorer, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
	`, u.UID, u.FullName, u.Email, u.PasswordHash, u.Role, u.DeviceID, u.IsSuperAdmin, u.IsScorer, u.CreatedAt)
	if isUniqueViolation(err) {
		return account.User{}, account.ErrEmailInUse
	}
	if err != nil {
		return account.User{}, err
	}
	return u, nil
}

func (r *AccountRepository) GetUser(ctx context.Context, uid string) (account.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
}

func (r *AccountRepository) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *AccountRepository) ListUsers(ctx context.Context, f account.Filter) ([]account.User, error) {
	var w where
	if f.Role != "" {
		w.eq("role", f.Role)
	}
	if f.RebindRequested {
		w.eq("rebind_request", true)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY full_name`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []account.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *AccountRepository) SetDevice(ctx context.Context, uid, deviceID string) error {
	return r.exec(ctx, `UPDATE users SET device_id = NULLIF($2, '') WHERE uid = $1`, uid, deviceID)
}

func (r *AccountRepository) SetRebindRequest(ctx context.Context, uid string, requested bool) error {
	return r.exec(ctx, `UPDATE users SET rebind_request = $2 WHERE uid = $1`, uid, requested)
}

func (r *AccountRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return account.ErrUserNotFound
	}
	return nil
}
