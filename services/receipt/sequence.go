package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// SequenceGenerator hands out the next receipt number of a school for a calendar year.
type SequenceGenerator interface {
	Next(ctx context.Context, schoolID string, year int) (int64, error)
}

// RedisSequence keeps one INCR counter per school and year.
type RedisSequence struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewRedisSequence wraps client with a circuit breaker and a per-call timeout, so an
// unreachable Redis degrades receipt numbering quickly instead of stalling collections.
func NewRedisSequence(client *redis.Client, timeout time.Duration) *RedisSequence {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "receipt-sequence",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &RedisSequence{client: client, breaker: breaker, timeout: timeout}
}

func sequenceKey(schoolID string, year int) string {
	return fmt.Sprintf("receipt_seq:%s:%d", schoolID, year)
}

func (s *RedisSequence) Next(ctx context.Context, schoolID string, year int) (int64, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.client.Incr(callCtx, sequenceKey(schoolID, year)).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("receipt sequence unavailable: %w", err)
	}
	return out.(int64), nil
}
