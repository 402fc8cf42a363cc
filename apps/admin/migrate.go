package main

import "github.com/trezcool/mahudhurio/storage/database"

func (cli *commandLine) migrate(args []string) error {
	return database.RunMigrations(cli.db, args[0], args[1:]...)
}
