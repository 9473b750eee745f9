package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// Firebase holds the Firestore and Auth clients of one Firebase project.
type Firebase struct {
	Firestore *firestore.Client
	Auth      *fbauth.Client
}

// NewFirebase initialises the app. credentials may be a file path or inline
// JSON; empty means application default credentials.
func NewFirebase(ctx context.Context, projectID, credentials string) (*Firebase, error) {
	var opts []option.ClientOption
	switch c := strings.TrimSpace(credentials); {
	case c == "":
	case strings.HasPrefix(c, "{"):
		opts = append(opts, option.WithCredentialsJSON([]byte(c)))
	default:
		opts = append(opts, option.WithCredentialsFile(c))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &Firebase{Firestore: fs, Auth: authClient}, nil
}

func (f *Firebase) Close() error {
	if f == nil || f.Firestore == nil {
		return nil
	}
	return f.Firestore.Close()
}
