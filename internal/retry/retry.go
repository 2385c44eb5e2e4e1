package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait after the first failed attempt. Each later
	// wait doubles, up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Jitter randomizes each wait by +/-50%.
	Jitter bool
}

// DefaultPolicy returns 5 attempts with waits of 15s, 30s, 60s, 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 15 * time.Second,
		MaxDelay:     60 * time.Second,
	}
}

// Controller runs operations under a Policy.
//
// Operations classify their failures with Retryable or Fatal. Only
// retryable failures consume attempts; anything else, including errors
// that were never classified, is returned straight away.
type Controller struct {
	policy Policy
	log    logrus.FieldLogger
}

// New returns a Controller. A nil logger uses the logrus standard logger.
func New(policy Policy, log logrus.FieldLogger) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{policy: policy, log: log}
}

// Policy returns the controller's policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

func (c *Controller) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.policy.InitialDelay
	b.MaxInterval = c.policy.MaxDelay
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	if c.policy.Jitter {
		b.RandomizationFactor = 0.5
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.policy.MaxAttempts-1)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts run out. In the last case the result is an *ExhaustedError
// wrapping the final retryable error.
func (c *Controller) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	attempts := 0
	log := c.log.WithField("op", name)

	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, c.backOff(ctx), func(err error, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"attempt": attempts,
			"wait":    wait,
		}).WithError(err).Warn("retrying")
	})

	if err == nil || !IsRetryable(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.WithField("attempts", attempts).WithError(err).Error("giving up")
	return &ExhaustedError{Op: name, Attempts: attempts, Err: err}
}

// Execute is Do for operations that return a value.
func Execute[T any](ctx context.Context, c *Controller, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
