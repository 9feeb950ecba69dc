package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	logrus "github.com/sirupsen/logrus"

	"tankcontrol/internal/bootstrap"
	"tankcontrol/internal/queue"
	"tankcontrol/pkg/config"
)

func main() {
	purge := flag.Bool("purge", false, "drop every pending message of the import queue before consuming")
	flag.Parse()

	settings := config.LoadSettings()
	settings.ConfigureLogging(&logrus.JSONFormatter{})

	if settings.RabbitMQURL() == "" {
		logrus.Fatal("RABBITMQ_HOST is required by the worker")
	}

	lifecycle, cleanup := bootstrap.Lifecycle(settings)
	defer cleanup()

	msgConsumer, err := config.NewConsumer(settings.ImportQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	if *purge {
		if err := config.PurgeQueue(settings.ImportQueue); err != nil {
			logrus.Warnf("Failed to purge queue %s: %v", settings.ImportQueue, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	importer := queue.NewOperationImporter(lifecycle)
	logrus.Infof("Operation import worker started on %s, waiting for messages...", settings.ImportQueue)

	err = msgConsumer.Consume(ctx, func(msg []byte) error {
		return importer.Handle(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Error("Consumer stopped: ", err)
	}
	logrus.Info("Operation import worker stopped")
}
