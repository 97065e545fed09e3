package storage

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var (
	redisOnce sync.Once
	rdb       *redis.Client
)

// Config initializes the shared Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// InitRedis sets up the singleton client. Safe to skip entirely when the
// gateway runs without the multi-node presence mirror.
func InitRedis(c Config) error {
	var initErr error
	redisOnce.Do(func() {
		client := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			initErr = errors.Wrap(err, "redis ping")
			return
		}
		rdb = client
	})
	return initErr
}

// GetRedis returns the shared client, or nil when disabled.
func GetRedis() *redis.Client { return rdb }

func CloseRedis() error {
	if rdb != nil {
		return rdb.Close()
	}
	return nil
}
