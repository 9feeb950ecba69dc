package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"tankcontrol/internal/bootstrap"
	"tankcontrol/internal/handlers"
	"tankcontrol/internal/routes"
	"tankcontrol/pkg/config"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending SQL migrations before serving")
	flag.Parse()

	settings := config.LoadSettings()
	settings.ConfigureLogging(&log.TextFormatter{FullTimestamp: true})

	lifecycle, cleanup := bootstrap.Lifecycle(settings)
	defer cleanup()

	if *migrate {
		config.ExecuteMigrations()
	}

	handlers.SetLifecycle(lifecycle)

	// Set up router
	r := routes.SetupRouter(settings)

	log.Infof("> production day timezone: %s", lifecycle.Location())
	if err := r.Run(":" + settings.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
