package account

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const minPasswordLen = 6

// Service owns registration, login and device binding.
type Service struct {
	repo       Repository
	bcryptCost int
	now        func() time.Time
}

// NewService creates the account service. A zero cost uses bcrypt's default.
func NewService(repo Repository, bcryptCost int) *Service {
	return &Service{repo: repo, bcryptCost: bcryptCost, now: time.Now}
}

// NewUser is the input of Register and AddUser.
type NewUser struct {
	FullName   string
	Email      string
	Password   string
	DeviceID   string
	Role       string
	SuperAdmin bool
	Scorer     bool
}

// Register creates a student account bound to the given device, if any.
func (s *Service) Register(ctx context.Context, in NewUser) (User, error) {
	in.Role = RoleStudent
	in.SuperAdmin, in.Scorer = false, false
	return s.AddUser(ctx, in)
}

// AddUser creates an account with an explicit role and flags.
func (s *Service) AddUser(ctx context.Context, in NewUser) (User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := NormalizeEmail(in.Email)
	if fullName == "" || email == "" || in.Password == "" {
		return User{}, ErrMissingFields
	}
	if len(in.Password) < minPasswordLen {
		return User{}, ErrWeakPassword
	}
	if in.Role == "" {
		in.Role = RoleStudent
	}
	if !validRole(in.Role) {
		return User{}, ErrUnknownRole
	}
	hash, err := hashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, User{
		UID:          uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		Role:         in.Role,
		DeviceID:     strings.TrimSpace(in.DeviceID),
		IsSuperAdmin: in.SuperAdmin,
		IsScorer:     in.Scorer,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
}

// Login checks the password and the device binding.
func (s *Service) Login(ctx context.Context, email, password, deviceID string) (User, error) {
	u, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !verifyPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return s.bind(ctx, u, deviceID)
}

// Authenticate applies the device rules to an identity verified elsewhere.
func (s *Service) Authenticate(ctx context.Context, uid, deviceID string) (User, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return User{}, err
	}
	return s.bind(ctx, u, deviceID)
}

// Refresh re-reads the account behind a refresh token. It never binds: the
// token's device must still be the bound one, so a reset device has to log
// in again.
func (s *Service) Refresh(ctx context.Context, uid, deviceID string) (User, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return User{}, err
	}
	if !validRole(u.Role) {
		return User{}, ErrUnknownRole
	}
	if u.DeviceID != strings.TrimSpace(deviceID) {
		return User{}, ErrDeviceMismatch
	}
	return u, nil
}

// bind rejects a device that differs from the bound one and binds unbound
// accounts to the first device they log in from.
func (s *Service) bind(ctx context.Context, u User, deviceID string) (User, error) {
	if !validRole(u.Role) {
		return User{}, ErrUnknownRole
	}
	deviceID = strings.TrimSpace(deviceID)
	if u.DeviceID != "" {
		if u.DeviceID != deviceID {
			return User{}, ErrDeviceMismatch
		}
		return u, nil
	}
	if deviceID == "" {
		return u, nil
	}
	if err := s.repo.SetDevice(ctx, u.UID, deviceID); err != nil {
		return User{}, err
	}
	u.DeviceID = deviceID
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, uid string) (User, error) {
	return s.repo.GetUser(ctx, uid)
}

// Profile returns display data for uid.
func (s *Service) Profile(ctx context.Context, uid string) (Profile, error) {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	return u.Profile(), nil
}

// Students lists every student ordered by name.
func (s *Service) Students(ctx context.Context) ([]Profile, error) {
	users, err := s.repo.ListUsers(ctx, Filter{Role: RoleStudent})
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(users))
	for _, u := range users {
		out = append(out, u.Profile())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	return out, nil
}

// RequestRebind flags the caller's account for a device reset.
func (s *Service) RequestRebind(ctx context.Context, uid string) error {
	u, err := s.repo.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if u.RebindRequest {
		return ErrRebindPending
	}
	return s.repo.SetRebindRequest(ctx, uid, true)
}

// RebindRequests lists accounts waiting for a device reset.
func (s *Service) RebindRequests(ctx context.Context, actor Actor) ([]User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.ListUsers(ctx, Filter{RebindRequested: true})
}

// ApproveRebind unbinds the device and clears the request.
func (s *Service) ApproveRebind(ctx context.Context, actor Actor, uid string) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.repo.GetUser(ctx, uid); err != nil {
		return err
	}
	if err := s.repo.SetDevice(ctx, uid, ""); err != nil {
		return err
	}
	return s.repo.SetRebindRequest(ctx, uid, false)
}

// ResetDevice unbinds the device of the account with the given email.
func (s *Service) ResetDevice(ctx context.Context, actor Actor, email string) (User, error) {
	if !actor.IsAdmin() {
		return User{}, ErrForbidden
	}
	u, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return User{}, err
	}
	if err := s.repo.SetDevice(ctx, u.UID, ""); err != nil {
		return User{}, err
	}
	u.DeviceID = ""
	return u, nil
}
