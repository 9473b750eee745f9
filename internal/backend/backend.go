// Package backend opens the repositories and the queue selected by config.
package backend

import (
	"context"
	"errors"
	"fmt"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/auth"
	"pathak/internal/config"
	"pathak/internal/parikshan"
	"pathak/internal/queue"
	"pathak/internal/store"
	"pathak/internal/store/docstore"
	"pathak/internal/store/memory"
	"pathak/internal/store/postgres"
)

// Store backends.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

// Queue backends.
const (
	QueueMemory   = "memory"
	QueueRedis    = "redis"
	QueueRabbitMQ = "rabbitmq"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Repos is one consistent set of repositories.
type Repos struct {
	Accounts   account.Repository
	Attendance attendance.Repository
	Parikshan  parikshan.Repository

	// Identity is set when the Firebase backend is in use.
	Identity auth.IdentityVerifier

	db       *store.DB
	firebase *store.Firebase
}

// OpenRepos connects to cfg.StoreBackend.
func OpenRepos(ctx context.Context, cfg config.App) (*Repos, error) {
	switch cfg.StoreBackend {
	case StoreMemory, "":
		return Memory(memory.New()), nil

	case StorePostgres:
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return &Repos{
			Accounts:   postgres.NewAccountRepository(db.Client),
			Attendance: postgres.NewAttendanceRepository(db.Client),
			Parikshan:  postgres.NewParikshanRepository(db.Client),
			db:         db,
		}, nil

	case StoreFirestore:
		fb, err := store.NewFirebase(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials)
		if err != nil {
			return nil, err
		}
		return &Repos{
			Accounts:   docstore.NewAccountRepository(fb.Firestore),
			Attendance: docstore.NewAttendanceRepository(fb.Firestore),
			Parikshan:  docstore.NewParikshanRepository(fb.Firestore),
			Identity:   auth.NewFirebaseVerifier(fb.Auth),
			firebase:   fb,
		}, nil
	}
	return nil, fmt.Errorf("store %q: %w", cfg.StoreBackend, ErrUnknownBackend)
}

// Memory builds repositories over an in-process database.
func Memory(db *memory.DB) *Repos {
	return &Repos{
		Accounts:   memory.NewAccountRepository(db),
		Attendance: memory.NewAttendanceRepository(db),
		Parikshan:  memory.NewParikshanRepository(db),
	}
}

// DB returns the Postgres pool, or nil for other backends.
func (r *Repos) DB() *store.DB { return r.db }

// Healthy pings the underlying store. The memory store is always healthy.
func (r *Repos) Healthy(ctx context.Context) bool {
	switch {
	case r.db != nil:
		return r.db.Healthy(ctx)
	case r.firebase != nil:
		return docstore.Ping(ctx, r.firebase.Firestore) == nil
	}
	return true
}

func (r *Repos) Close() error {
	return errors.Join(r.db.Close(), r.firebase.Close())
}

// Queue is the event queue plus whatever connection it holds.
type Queue struct {
	queue.Queue
	redis  *store.Redis
	closer func() error
}

// OpenQueue builds the queue named by cfg.QueueBackend. The in-memory queue
// only delivers within one process.
func OpenQueue(cfg config.App) (*Queue, error) {
	switch cfg.QueueBackend {
	case QueueMemory, "":
		return &Queue{Queue: queue.NewInMemory(64)}, nil
	case QueueRedis:
		rdb := store.NewRedis(cfg.RedisAddr)
		return &Queue{Queue: queue.NewRedisQueue(rdb.Client, cfg.QueueName), redis: rdb, closer: rdb.Close}, nil
	case QueueRabbitMQ:
		rq := queue.NewRabbitQueue(cfg.RabbitMQURL, cfg.QueueName)
		return &Queue{Queue: rq, closer: rq.Close}, nil
	}
	return nil, fmt.Errorf("queue %q: %w", cfg.QueueBackend, ErrUnknownBackend)
}

// Redis returns the queue's redis connection when the redis backend is used.
func (q *Queue) Redis() *store.Redis { return q.redis }

func (q *Queue) Close() error {
	if q.closer == nil {
		return nil
	}
	return q.closer()
}
