package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/edupulse/core"
	"github.com/trezcool/edupulse/core/user"
	"github.com/trezcool/edupulse/core/weekly"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errUnknownRole = errors.New("role must be one of admin, staff or executive")
)

type commandLine struct {
	conf      *core.Config
	db        *sqlx.DB
	usrSvc    *user.Service
	weeklySvc *weekly.Service
	nowFunc   func() time.Time
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, version, ...)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-role admin|staff|executive] - create or update an active user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  rollup [-date YYYY-MM-DD] - fold the daily metrics of a week into its snapshot")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func rolesFor(name string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return nil, nil
	case "admin":
		return user.AllRoles, nil
	case "staff":
		return user.StaffRoles, nil
	case "executive":
		return user.ExecutiveRoles, nil
	default:
		return nil, errUnknownRole
	}
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", "", "One of admin, staff or executive.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	rollupCmd := flag.NewFlagSet("rollup", flag.ContinueOnError)
	rollupDate := rollupCmd.String("date", "", "Any date of the week to roll up. Defaults to today.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		roles, err := rolesFor(*addUserRole)
		if err != nil {
			return err
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "rollup":
		if err := rollupCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.rollup(*rollupDate)

	default:
		cli.printUsage()
		return errHelp
	}
}
