package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNone(t *testing.T) {
	t.Parallel()

	var s None
	assert.Equal(t, time.Duration(0), s.Delay(1))
	assert.Equal(t, time.Duration(0), s.Delay(10))
}

func TestExponential(t *testing.T) {
	t.Parallel()

	s := NewExponential(time.Second, time.Minute)

	assert.Equal(t, 1*time.Second, s.Delay(1))
	assert.Equal(t, 2*time.Second, s.Delay(2))
	assert.Equal(t, 4*time.Second, s.Delay(3))
	assert.Equal(t, 8*time.Second, s.Delay(4))

	// Capped at Max.
	assert.Equal(t, time.Minute, s.Delay(20))

	// Attempts below 1 are clamped.
	assert.Equal(t, 1*time.Second, s.Delay(0))
}

func TestExponentialWithJitter(t *testing.T) {
	t.Parallel()

	s := NewExponentialWithJitter(time.Second, time.Minute)

	for attempt := 1; attempt <= 10; attempt++ {
		d := s.Delay(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, time.Minute, "attempt %d", attempt)
	}
}
