// ABOUTME: Demo components that take a throttled amount of time to initialize
// ABOUTME: Share one rate limiter so a batch of components finishes at a steady pace

package lifecycle

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// NewLimiter returns a limiter admitting perSecond initializations per second.
// perSecond <= 0 disables throttling.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// SlowInit returns an InitFunc that blocks until limiter admits it.
func SlowInit(limiter *rate.Limiter) InitFunc {
	return func(ctx context.Context) error {
		return limiter.Wait(ctx)
	}
}

// RegisterSlowComponents registers count components named prefix+N, N starting
// at first, all sharing limiter.
func RegisterSlowComponents(c *Container, prefix string, first, count int, limiter *rate.Limiter) error {
	for i := range count {
		name := fmt.Sprintf("%s%d", prefix, first+i)
		if err := c.Register(name, SlowInit(limiter)); err != nil {
			return err
		}
	}
	return nil
}
