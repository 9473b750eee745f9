package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pathak/internal/account"
)

// Token kinds.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var ErrWrongTokenKind = errors.New("wrong token kind")

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims is the JWT payload. DeviceID is the device the token was issued to.
type Claims struct {
	Role       string `json:"role"`
	SuperAdmin bool   `json:"super_admin,omitempty"`
	Scorer     bool   `json:"scorer,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	Kind       string `json:"kind"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the domain caller.
func (c Claims) Actor() account.Actor {
	return account.Actor{UID: c.Subject, Role: c.Role, SuperAdmin: c.SuperAdmin, Scorer: c.Scorer}
}

// Issuer signs tokens with HS256.
type Issuer struct {
	Name       string
	Key        string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Issue issues signed access and refresh tokens for the user.
func (i Issuer) Issue(u account.User) (TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(i.AccessTTL)
	refreshExp := now.Add(i.RefreshTTL)

	access, err := i.sign(u, KindAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(u, KindRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (i Issuer) sign(u account.User, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role:       u.Role,
		SuperAdmin: u.IsSuperAdmin,
		Scorer:     u.IsScorer,
		DeviceID:   u.DeviceID,
		Kind:       kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.Name,
			Subject:   u.UID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.Key))
}

// Parse validates a token of the wanted kind and returns its claims.
func (i Issuer) Parse(tokenStr, kind string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(i.Key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.Name != "" && claims.Issuer != i.Name {
		return Claims{}, errors.New("issuer mismatch")
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}
	return *claims, nil
}
