package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"tankcontrol/pkg/volumetric"
)

// Settings 运行参数，来自环境变量或 config.yaml
type Settings struct {
	Port string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBTimeZone string

	RabbitMQHost     string
	RabbitMQPort     string
	RabbitMQUser     string
	RabbitMQPassword string
	AuditQueue       string
	ImportQueue      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	AllowedOrigins []string

	ProductionTimezone   string
	ThermalTolerance     float64
	ThermalMaxIterations int

	WriteRateLimitRPS   float64
	WriteRateLimitBurst int

	LogLevel      string
	SchedulerCron string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("RABBITMQ_PORT", "5672")
	v.SetDefault("AUDIT_QUEUE", "tank_audit")
	v.SetDefault("IMPORT_QUEUE", "tank_operation_import")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL_SECONDS", 30)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("PRODUCTION_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("THERMAL_TOLERANCE", volumetric.DefaultThermalOptions().Tolerance)
	v.SetDefault("THERMAL_MAX_ITERATIONS", volumetric.DefaultThermalOptions().MaxIterations)
	v.SetDefault("WRITE_RATE_LIMIT_RPS", 20)
	v.SetDefault("WRITE_RATE_LIMIT_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SCHEDULER_CRON", "5 0 * * *")
}

// LoadSettings reads the environment through viper and applies defaults.
func LoadSettings() Settings {
	return settingsFrom(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	// config.yaml 可选，环境变量优先
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.WithError(err).Warn("> failed to read config.yaml, using environment only")
		}
	}
	return v
}

func settingsFrom(v *viper.Viper) Settings {
	return Settings{
		Port: v.GetString("PORT"),

		DBHost:     v.GetString("DB_HOST"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBPort:     v.GetString("DB_PORT"),
		DBTimeZone: v.GetString("DB_TIMEZONE"),

		RabbitMQHost:     v.GetString("RABBITMQ_HOST"),
		RabbitMQPort:     v.GetString("RABBITMQ_PORT"),
		RabbitMQUser:     v.GetString("RABBITMQ_USER"),
		RabbitMQPassword: v.GetString("RABBITMQ_PASSWORD"),
		AuditQueue:       v.GetString("AUDIT_QUEUE"),
		ImportQueue:      v.GetString("IMPORT_QUEUE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		LockTTL:       time.Duration(v.GetInt("LOCK_TTL_SECONDS")) * time.Second,

		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		ProductionTimezone:   v.GetString("PRODUCTION_TIMEZONE"),
		ThermalTolerance:     v.GetFloat64("THERMAL_TOLERANCE"),
		ThermalMaxIterations: v.GetInt("THERMAL_MAX_ITERATIONS"),

		WriteRateLimitRPS:   v.GetFloat64("WRITE_RATE_LIMIT_RPS"),
		WriteRateLimitBurst: v.GetInt("WRITE_RATE_LIMIT_BURST"),

		LogLevel:      v.GetString("LOG_LEVEL"),
		SchedulerCron: v.GetString("SCHEDULER_CRON"),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Location resolves the production-day timezone.
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.ProductionTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCTION_TIMEZONE %q: %w", s.ProductionTimezone, err)
	}
	return loc, nil
}

// Thermal returns the solver options, falling back to defaults when the env values are unusable.
func (s Settings) Thermal() volumetric.ThermalOptions {
	opts := volumetric.ThermalOptions{Tolerance: s.ThermalTolerance, MaxIterations: s.ThermalMaxIterations}
	if opts.Tolerance <= 0 || opts.MaxIterations <= 0 {
		logger.WithFields(logger.Fields{
			"tolerance":      s.ThermalTolerance,
			"max_iterations": s.ThermalMaxIterations,
		}).Warn("> invalid thermal settings, using defaults")
		return volumetric.DefaultThermalOptions()
	}
	return opts
}

// DatabaseDSN builds the postgres connection string.
func (s Settings) DatabaseDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		s.DBHost,
		s.DBUser,
		s.DBPassword,
		s.DBName,
		s.DBPort,
		s.DBTimeZone,
	)
}

// RabbitMQURL is empty when no host is configured.
func (s Settings) RabbitMQURL() string {
	if s.RabbitMQHost == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		s.RabbitMQUser,
		s.RabbitMQPassword,
		s.RabbitMQHost,
		s.RabbitMQPort,
	)
}

// ConfigureLogging sets the logrus formatter and the level from LOG_LEVEL.
func (s Settings) ConfigureLogging(formatter logger.Formatter) {
	logger.SetFormatter(formatter)
	level, err := logger.ParseLevel(s.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("> unknown LOG_LEVEL, using info")
		level = logger.InfoLevel
	}
	logger.SetLevel(level)
}
