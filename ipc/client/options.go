package client

import (
	"time"

	"github.com/gostdlib/base/retry/exponential"
)

type config struct {
	// Retry policy for dialing a server that is not up yet.
	retryPolicy exponential.Policy
	// dialTimeout bounds Dial including its retries.
	dialTimeout time.Duration
	// pollInterval is how often a waiting call checks its context.
	pollInterval time.Duration
}

func defaultConfig() *config {
	return &config{
		retryPolicy:  exponential.FastRetryPolicy(),
		dialTimeout:  5 * time.Second,
		pollInterval: 100 * time.Millisecond,
	}
}

// Option configures a Client.
type Option func(*config)

// WithRetryPolicy sets the retry policy used by Dial.
// If not set, exponential.FastRetryPolicy() is used.
func WithRetryPolicy(policy exponential.Policy) Option {
	return func(c *config) {
		c.retryPolicy = policy
	}
}

// WithDialTimeout bounds how long Dial keeps retrying. Default is 5 seconds.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = timeout
	}
}

// WithPollInterval sets how often a call waiting for its reply checks for cancelation.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}
