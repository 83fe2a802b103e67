package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	defaultDelay    = 2 * time.Second
	defaultMaxDelay = 30 * time.Second
)

// Policy is a bounded retry policy applied to network operations.
type Policy struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"2s"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"30s"`
	Backoff  bool          `env:"BACKOFF" envDefault:"false"`
}

func (p *Policy) ToRetryOptions() []retry.Option {
	delayType := retry.FixedDelay
	if p.Backoff {
		delayType = retry.BackOffDelay
	}

	// retry-go treats zero attempts as unlimited
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return []retry.Option{
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
	}
}

// Do runs op until it succeeds, returns an unrecoverable error, the attempts
// are exhausted or ctx is done. onRetry receives the 1-based attempt number
// of every failed attempt.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt uint, err error)) error {
	opts := append(p.ToRetryOptions(), retry.Context(ctx))
	if onRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			onRetry(n+1, err)
		}))
	}

	return retry.Do(func() error {
		return op(ctx)
	}, opts...)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return retry.Unrecoverable(err)
}

func DefaultPolicy() *Policy {
	return &Policy{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}
