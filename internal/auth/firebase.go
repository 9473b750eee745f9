package auth

import (
	"context"
	"errors"

	fbauth "firebase.google.com/go/v4/auth"
)

var ErrIdentityUnavailable = errors.New("identity provider not configured")

// IdentityVerifier turns an identity-provider token into a user id.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (string, error)
}

// FirebaseVerifier verifies Firebase Authentication ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (string, error) {
	if v == nil || v.client == nil {
		return "", ErrIdentityUnavailable
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}
	return tok.UID, nil
}
