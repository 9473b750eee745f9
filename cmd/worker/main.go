package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pathak/internal/account"
	"pathak/internal/attendance"
	"pathak/internal/backend"
	"pathak/internal/config"
	"pathak/internal/logging"
	"pathak/internal/worker"
)

// Worker consumes attendance events and repairs approved corrections.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == backend.QueueMemory {
		log.Fatalf("QUEUE_BACKEND=memory only delivers inside the API process; use redis or rabbitmq")
	}

	host, _ := os.Hostname()
	logger := logging.New(nil, logging.Options{
		RollbarToken: cfg.RollbarToken,
		Env:          cfg.Env,
		CodeVersion:  cfg.CodeVersion,
		Host:         host,
	})
	defer logger.Close()

	repos, err := backend.OpenRepos(ctx, cfg)
	if err != nil {
		log.Fatalf("store connect failed: %v", err)
	}
	defer repos.Close()

	q, err := backend.OpenQueue(cfg)
	if err != nil {
		log.Fatalf("queue init failed: %v", err)
	}
	defer q.Close()

	accounts := account.NewService(repos.Accounts, cfg.BcryptCost)
	att := attendance.NewService(repos.Attendance, accounts, attendance.Options{})

	if err := worker.New(q, att, logger).Run(ctx); err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}
}
