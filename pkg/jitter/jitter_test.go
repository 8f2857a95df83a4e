package jitter

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := Duration(base, 0.5)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestDurationWithSeed(t *testing.T) {
	rng1 := rand.New(rand.NewSource(42))
	rng2 := rand.New(rand.NewSource(42))

	d1 := DurationWithSeed(time.Second, 0.5, rng1)
	d2 := DurationWithSeed(time.Second, 0.5, rng2)
	assert.Equal(t, d1, d2)
}

func TestExponentialBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	max := 1 * time.Second

	t.Run("grows with attempt", func(t *testing.T) {
		d0 := ExponentialBackoff(base, max, 0, 0)
		d2 := ExponentialBackoff(base, max, 2, 0)
		assert.Equal(t, base, d0)
		assert.Equal(t, 4*base, d2)
	})

	t.Run("is capped at max", func(t *testing.T) {
		d := ExponentialBackoff(base, max, 10, 0)
		assert.Equal(t, max, d)
	})
}

func TestSleep(t *testing.T) {
	t.Run("returns nil after the duration", func(t *testing.T) {
		err := Sleep(context.Background(), time.Millisecond)
		require.NoError(t, err)
	})

	t.Run("returns context error on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Sleep(ctx, time.Minute)
		require.ErrorIs(t, err, context.Canceled)
	})
}
