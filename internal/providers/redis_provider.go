package providers

import (
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisProvider returns the client shared by the AI rate limiter and,
// when persistence.type is redis, the creation sink. Timeouts are short so
// a slow Redis delays a request by at most a few hundred milliseconds.
func NewRedisProvider(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
		MaxRetries:   1,
	})
}
