package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Now(t *testing.T) {
	clk := System()

	before := time.Now()
	now := clk.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestFake_Now(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	assert.Equal(t, start, clk.Now())

	// Time does not pass on its own.
	assert.Equal(t, start, clk.Now())
}

func TestFake_Advance(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	clk.Advance(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), clk.Now())

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, start.Add(3500*time.Millisecond), clk.Now())
}

func TestFake_Set(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	target := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk.Set(target)

	assert.Equal(t, target, clk.Now())
}

func TestFake_ConcurrentAccess(t *testing.T) {
	clk := NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			clk.Advance(time.Millisecond)
		}
	}()

	for i := 0; i < 1000; i++ {
		_ = clk.Now()
	}
	<-done

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC), clk.Now())
}
