package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayIncreases(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Minute}

	assert.Zero(t, p.Delay(0))
	for run := 0; run < 20; run++ {
		prev := time.Duration(0)
		for attempts := 1; attempts <= 6; attempts++ {
			d := p.Delay(attempts)
			assert.Greater(t, d, prev)
			prev = d
		}
	}
}

func TestDelayIsCapped(t *testing.T) {
	p := Policy{InitialInterval: time.Second, MaxInterval: 4 * time.Second}
	for attempts := 1; attempts <= 10; attempts++ {
		assert.LessOrEqual(t, p.Delay(attempts), 5*time.Second)
	}
}

func TestExhausted(t *testing.T) {
	p := Policy{MaxAttempts: 3}
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.False(t, Policy{}.Exhausted(100))
}

func TestDefaultPolicy(t *testing.T) {
	t.Setenv("TELEMETRY_UPLOAD_MAX_ATTEMPTS", "7")
	p := DefaultPolicy()
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.Equal(t, 5*time.Minute, p.MaxInterval)
}
