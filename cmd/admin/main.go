package main

import (
	"context"
	"log"
	"os"

	"pathak/internal/account"
	"pathak/internal/backend"
	"pathak/internal/config"
	"pathak/internal/parikshan"
	"pathak/internal/store/postgres"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cfg := config.Load()
	repos, err := backend.OpenRepos(context.Background(), cfg)
	errAndDie(err)

	accounts := account.NewService(repos.Accounts, cfg.BcryptCost)
	cli := commandLine{
		accounts: accounts,
		scores:   parikshan.NewService(repos.Parikshan, accounts),
	}
	if db := repos.DB(); db != nil {
		cli.migrate = func(ctx context.Context) error { return postgres.Migrate(ctx, db.Client) }
	}

	err = cli.run(os.Args)
	_ = repos.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
