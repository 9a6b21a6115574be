package upload

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/thisdougb/telemetry/internal/config"
)

// Policy decides when a failed upload is retried and when it is given up.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy reads the retry policy from the environment.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     config.IntValue("TELEMETRY_UPLOAD_MAX_ATTEMPTS"),
		InitialInterval: config.MillisValue("TELEMETRY_UPLOAD_BACKOFF_INITIAL_MS"),
		MaxInterval:     config.MillisValue("TELEMETRY_UPLOAD_BACKOFF_MAX_MS"),
	}
}

// Delay returns the wait before retrying after the given number of failed
// attempts. Each interval doubles with 25% jitter, so delays strictly increase
// until MaxInterval is reached.
func (p Policy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialInterval,
		RandomizationFactor: 0.25,
		Multiplier:          2,
		MaxInterval:         p.MaxInterval,
	}
	b.Reset()

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}

// Exhausted reports whether no more attempts are allowed.
func (p Policy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}
