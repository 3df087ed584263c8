package genports

import "context"

// RateLimiter coordinates throughput against the completion API.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
