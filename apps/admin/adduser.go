package main

import (
	"context"
	"fmt"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, pwd string, roles []string) error {
	usr, err := cli.usrSvc.AddUser(context.Background(), uname, email, pwd, roles...)
	if err != nil {
		return err
	}
	fmt.Printf("user %q saved (roles: %v)\n", usr.Username, usr.Roles)
	return nil
}
