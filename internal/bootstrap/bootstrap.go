// Package bootstrap wires the shared infrastructure every process needs
// before it can drive the report lifecycle.
package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"tankcontrol/internal/audit"
	"tankcontrol/internal/handlers/business"
	"tankcontrol/internal/lock"
	"tankcontrol/internal/metrics"
	"tankcontrol/internal/repository"
	"tankcontrol/pkg/config"
)

// Lifecycle connects postgres, redis and RabbitMQ as configured and returns the
// engine plus a cleanup func. Redis and RabbitMQ are optional.
func Lifecycle(settings config.Settings) (*business.ReportLifecycle, func()) {
	var closers []func()

	config.InitDB(settings)
	log.Info("> 数据库连接初始化完成")

	var locker lock.Locker = lock.NewKeyedMutex()
	if config.InitRedis(settings) {
		locker = lock.NewRedisLocker(config.Redis, settings.LockTTL)
		closers = append(closers, func() { config.Redis.Close() })
	}

	var sink audit.Sink = audit.LogSink{}
	if settings.RabbitMQURL() != "" {
		config.InitRabbitMQ(settings)
		closers = append(closers, func() { config.RabbitMQ.Close() })

		publisher, err := config.NewPublisher()
		if err != nil {
			log.Fatal("Failed to create audit publisher:", err)
		}
		closers = append(closers, func() { publisher.Close() })
		sink = audit.NewQueueSink(publisher, settings.AuditQueue)
	} else {
		log.Info("RabbitMQ not configured, audit entries go to the log")
	}

	loc, err := settings.Location()
	if err != nil {
		log.Fatal(err)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	life := business.NewReportLifecycle(repository.NewGormStore(config.DB), locker, sink, business.LifecycleOptions{
		Location: loc,
		Thermal:  settings.Thermal(),
	})

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return life, cleanup
}
