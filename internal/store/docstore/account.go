package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pathak/internal/account"
)

type userDoc struct {
	FullName      string    `firestore:"fullname"`
	Email         string    `firestore:"email"`
	Role          string    `firestore:"role"`
	DeviceID      *string   `firestore:"deviceId"`
	IsSuperAdmin  bool      `firestore:"isSuperAdmin"`
	IsScorer      bool      `firestore:"isScorer"`
	RebindRequest bool      `firestore:"rebindRequest"`
	PasswordHash  []byte    `firestore:"passwordHash,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func toUserDoc(u account.User) userDoc {
	d := userDoc{
		FullName:      u.FullName,
		Email:         u.Email,
		Role:          u.Role,
		IsSuperAdmin:  u.IsSuperAdmin,
		IsScorer:      u.IsScorer,
		RebindRequest: u.RebindRequest,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt,
	}
	if u.DeviceID != "" {
		id := u.DeviceID
		d.DeviceID = &id
	}
	return d
}

// userFrom decodes a users document. createdAt is a timestamp when written
// here and an ISO string when written by the mobile app.
func userFrom(uid string, data map[string]interface{}) account.User {
	hash, _ := data["passwordHash"].([]byte)
	return account.User{
		UID:           uid,
		FullName:      stringField(data, "fullname"),
		Email:         stringField(data, "email"),
		Role:          stringField(data, "role"),
		DeviceID:      stringField(data, "deviceId"),
		IsSuperAdmin:  boolField(data, "isSuperAdmin"),
		IsScorer:      boolField(data, "isScorer"),
		RebindRequest: boolField(data, "rebindRequest"),
		PasswordHash:  hash,
		CreatedAt:     timeField(data, "createdAt"),
	}
}

func fromUserSnap(snap *firestore.DocumentSnapshot) account.User {
	return userFrom(snap.Ref.ID, snap.Data())
}

// AccountRepository stores users in the users collection keyed by uid.
type AccountRepository struct {
	client *firestore.Client
}

func NewAccountRepository(client *firestore.Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// CreateUser checks email uniqueness and creates the document in one transaction.
func (r *AccountRepository) CreateUser(ctx context.Context, u account.User) (account.User, error) {
	ref := r.client.Collection(colUsers).Doc(u.UID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		q := r.client.Collection(colUsers).Where("email", "==", u.Email).Limit(1)
		docs, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			return account.ErrEmailInUse
		}
		return tx.Create(ref, toUserDoc(u))
	})
	if err != nil {
		if isAlreadyExists(err) {
			return account.User{}, account.ErrEmailInUse
		}
		return account.User{}, err
	}
	return u, nil
}

func (r *AccountRepository) GetUser(ctx context.Context, uid string) (account.User, error) {
	snap, err := r.client.Collection(colUsers).Doc(uid).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return account.User{}, account.ErrUserNotFound
		}
		return account.User{}, err
	}
	return fromUserSnap(snap), nil
}

func (r *AccountRepository) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	iter := r.client.Collection(colUsers).Where("email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return account.User{}, account.ErrUserNotFound
	}
	if err != nil {
		return account.User{}, err
	}
	return fromUserSnap(snap), nil
}

func (r *AccountRepository) ListUsers(ctx context.Context, f account.Filter) ([]account.User, error) {
	q := r.client.Collection(colUsers).Query
	if f.Role != "" {
		q = q.Where("role", "==", f.Role)
	}
	if f.RebindRequested {
		q = q.Where("rebindRequest", "==", true)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var users []account.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		users = append(users, fromUserSnap(snap))
	}
	return users, nil
}

func (r *AccountRepository) SetDevice(ctx context.Context, uid, deviceID string) error {
	var value interface{}
	if deviceID != "" {
		value = deviceID
	}
	return r.update(ctx, uid, firestore.Update{Path: "deviceId", Value: value})
}

func (r *AccountRepository) SetRebindRequest(ctx context.Context, uid string, requested bool) error {
	return r.update(ctx, uid, firestore.Update{Path: "rebindRequest", Value: requested})
}

func (r *AccountRepository) update(ctx context.Context, uid string, updates ...firestore.Update) error {
	_, err := r.client.Collection(colUsers).Doc(uid).Update(ctx, updates)
	if isNotFound(err) {
		return account.ErrUserNotFound
	}
	return err
}
