package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"tankcontrol/pkg/config"
)

func main() {
	down := flag.Bool("down", false, "roll back the last migration instead of applying pending ones")
	dir := flag.String("dir", config.MigrationsDir, "directory holding the SQL migrations")
	flag.Parse()

	settings := config.LoadSettings()
	settings.ConfigureLogging(&log.TextFormatter{FullTimestamp: true})

	config.MigrationsDir = *dir
	config.InitDB(settings)

	if *down {
		config.RollbackMigration()
		return
	}
	config.ExecuteMigrations()
}
