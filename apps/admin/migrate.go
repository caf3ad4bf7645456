package main

import (
	"github.com/trezcool/dormportal/storage/database"
)

var (
	// mockable
	gooseRunFunc = database.Migrate
	createDBFunc = database.CreateIfNotExist
)

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}

func (cli *commandLine) createDB() error {
	return createDBFunc(cli.conf)
}
