package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"pathak/internal/account"
	"pathak/internal/parikshan"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNoMigrations = errors.New("migrate needs STORE_BACKEND=postgres")
)

type commandLine struct {
	accounts *account.Service
	scores   *parikshan.Service
	migrate  func(ctx context.Context) error // nil unless the store is Postgres
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                       - apply the database schema")
	fmt.Println("  adduser -email EMAIL -name NAME [-role ROLE] [-super] [-scorer]")
	fmt.Println("                                                - create an account; the password is prompted next")
	fmt.Println("  resetdevice -email EMAIL                      - unbind the account's device")
	fmt.Println("  release -on|-off                              - show or hide Parikshan results")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", account.RoleAdmin, "admin or student.")
	addUserSuper := addUserCmd.Bool("super", false, "Allow releasing Parikshan results.")
	addUserScorer := addUserCmd.Bool("scorer", false, "Allow entering Parikshan scores.")

	resetDeviceCmd := flag.NewFlagSet("resetdevice", flag.ContinueOnError)
	resetDeviceEmail := resetDeviceCmd.String("email", "", "The user's email.")

	releaseCmd := flag.NewFlagSet("release", flag.ContinueOnError)
	releaseOn := releaseCmd.Bool("on", false, "Show results to students.")
	releaseOff := releaseCmd.Bool("off", false, "Hide results from students.")

	switch args[1] {
	case "migrate":
		if cli.migrate == nil {
			return errNoMigrations
		}
		return cli.migrate(ctx)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		u, err := cli.accounts.AddUser(ctx, account.NewUser{
			FullName:   *addUserName,
			Email:      *addUserEmail,
			Password:   string(pwd),
			Role:       *addUserRole,
			SuperAdmin: *addUserSuper,
			Scorer:     *addUserScorer,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s) uid=%s\n", u.Email, u.Role, u.UID)
		return nil

	case "resetdevice":
		if err := resetDeviceCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetDeviceEmail == "" {
			resetDeviceCmd.Usage()
			return errHelp
		}
		u, err := cli.accounts.ResetDevice(ctx, account.System, *resetDeviceEmail)
		if err != nil {
			return err
		}
		fmt.Printf("device unbound for %s\n", u.Email)
		return nil

	case "release":
		if err := releaseCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *releaseOn == *releaseOff {
			releaseCmd.Usage()
			return errHelp
		}
		if err := cli.scores.SetReleased(ctx, account.System, *releaseOn); err != nil {
			return err
		}
		fmt.Printf("results released: %t\n", *releaseOn)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
