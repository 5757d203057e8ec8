package main

import (
	"github.com/trezcool/edupulse/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db.DB, database.Dialect(cli.conf), args[0], args[1:]...)
}
