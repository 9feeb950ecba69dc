package config

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var Redis *redis.Client

// InitRedis connects the shared lock client. Returns false when REDIS_ADDR is unset.
func InitRedis(settings Settings) bool {
	if settings.RedisAddr == "" {
		log.Info("Redis not configured, using in-process locks")
		return false
	}

	client := redis.NewClient(&redis.Options{
		Addr:     settings.RedisAddr,
		Password: settings.RedisPassword,
		DB:       settings.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	Redis = client
	log.Infof("Successfully connected to Redis at %s", settings.RedisAddr)
	return true
}
