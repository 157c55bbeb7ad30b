package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectRedis dials addr and pings it, retrying with exponential backoff up
// to attempts times. It returns nil when addr is empty or redis never
// answers: callers then run without the slot guard.
func ConnectRedis(ctx context.Context, logger logrus.FieldLogger, addr string, attempts int) *redis.Client {
	if addr == "" {
		return nil
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			PoolSize: 20,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logger.WithFields(logrus.Fields{"addr": addr, "attempt": attempt}).Info("connected to redis")
			return rdb
		}
		rdb.Close()

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{"addr": addr, "attempt": attempt, "retry_in": sleep.String()}).
			Warnf("failed to connect redis: %v", err)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}

	logger.WithField("addr", addr).Warn("redis unavailable, slot guard disabled")
	return nil
}
