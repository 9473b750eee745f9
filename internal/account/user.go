package account

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMissingFields      = errors.New("full name, email and password are required")
	ErrDeviceMismatch     = errors.New("account is bound to another device")
	ErrUnknownRole        = errors.New("unknown role")
	ErrRebindPending      = errors.New("device rebind already requested")
	ErrForbidden          = errors.New("forbidden")
)

// User is a registered member of the pathak. DeviceID is empty while unbound.
type User struct {
	UID           string    `json:"uid"`
	FullName      string    `json:"fullname"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	DeviceID      string    `json:"device_id,omitempty"`
	IsSuperAdmin  bool      `json:"is_super_admin"`
	IsScorer      bool      `json:"is_scorer"`
	RebindRequest bool      `json:"rebind_request"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Actor returns the identity the user acts with.
func (u User) Actor() Actor {
	return Actor{UID: u.UID, Role: u.Role, SuperAdmin: u.IsSuperAdmin, Scorer: u.IsScorer}
}

// Profile returns the public part of the user.
func (u User) Profile() Profile {
	return Profile{UID: u.UID, FullName: u.FullName, Email: u.Email, Role: u.Role}
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UID        string
	Role       string
	SuperAdmin bool
	Scorer     bool
}

// System is used by the admin CLI and the worker.
var System = Actor{UID: "system", Role: RoleAdmin, SuperAdmin: true}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanScore reports whether the actor may enter Parikshan marks.
func (a Actor) CanScore() bool { return a.IsAdmin() || a.Scorer }

// Profile is the part of a user other domains display.
type Profile struct {
	UID      string `json:"uid"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Filter narrows ListUsers.
type Filter struct {
	Role            string
	RebindRequested bool
}

// Repository persists users.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, uid string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, f Filter) ([]User, error)
	SetDevice(ctx context.Context, uid, deviceID string) error
	SetRebindRequest(ctx context.Context, uid string, requested bool) error
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleStudent
}
