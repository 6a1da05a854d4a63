package circuitbreaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	b1 := r.GetOrCreate("pet")
	b2 := r.GetOrCreate("pet")

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Get_Unknown(t *testing.T) {
	r := NewRegistry(nil, nil)

	assert.Nil(t, r.Get("missing"))
}

func TestRegistry_GetOrCreateWithConfig(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	custom := DefaultConfig().WithFailureThreshold(1)
	b := r.GetOrCreateWithConfig("strict", custom)

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestRegistry_ConcurrentGetOrCreate(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	var wg sync.WaitGroup
	breakers := make([]*Breaker, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			breakers[i] = r.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < 10; i++ {
		assert.Same(t, breakers[0], breakers[i])
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	r.GetOrCreate("pet")
	r.Remove("pet")

	assert.Nil(t, r.Get("pet"))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	r.GetOrCreate("pet")
	r.GetOrCreate("user")

	names := r.Names()
	assert.Len(t, names, 2)
	assert.ElementsMatch(t, []string{"pet", "user"}, names)
}

func TestRegistry_ResetAll(t *testing.T) {
	config := DefaultConfig().WithFailureThreshold(1)
	r := NewRegistry(config, nil)

	b1 := r.GetOrCreate("pet")
	b2 := r.GetOrCreate("user")
	b1.RecordFailure()
	b2.RecordFailure()

	r.ResetAll()

	assert.Equal(t, StateClosed, b1.State())
	assert.Equal(t, StateClosed, b2.State())
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(DefaultConfig(), nil)

	r.GetOrCreate("pet").RecordFailure()
	r.GetOrCreate("user").RecordSuccess()

	stats := r.Stats()
	assert.Len(t, stats, 2)
	assert.Equal(t, 1, stats["pet"].Failures)
	assert.Equal(t, 1, stats["user"].Successes)
}

func TestConfig_ValidateNormalizes(t *testing.T) {
	c := &Config{}
	assert.NoError(t, c.Validate())

	assert.Equal(t, 5, c.FailureThreshold)
	assert.Equal(t, 30*time.Second, c.ResetTimeout)
	assert.Equal(t, 2, c.SuccessThreshold)
	assert.NotNil(t, c.Clock)
}
