package errx

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified AgentError type.
func WrapRedis(err error) *AgentError {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, KindStorage, RedisNotFoundMessage)
	}

	return New(err, KindStorage, RedisErrorMessage)
}
