package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_Allow(t *testing.T) {
	clock := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKeyed(6, 2)
	k.now = func() time.Time { return clock }

	assert.True(t, k.Allow("10.0.0.1"))
	assert.True(t, k.Allow("10.0.0.1"))
	assert.False(t, k.Allow("10.0.0.1"), "burst exhausted")
	assert.True(t, k.Allow("10.0.0.2"), "keys are independent")

	clock = clock.Add(10 * time.Second)
	assert.True(t, k.Allow("10.0.0.1"), "one token refills every ten seconds")
	assert.False(t, k.Allow("10.0.0.1"))
}

func TestKeyed_Disabled(t *testing.T) {
	k := NewKeyed(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, k.Allow("x"))
	}
}

func TestKeyed_Sweep(t *testing.T) {
	clock := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	k := NewKeyed(60, 5)
	k.now = func() time.Time { return clock }

	k.Allow("old")
	clock = clock.Add(time.Hour)
	k.Allow("new")

	assert.Equal(t, 1, k.Sweep(30*time.Minute))
	assert.Equal(t, 1, k.Len())
}
