package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_InitialLoad(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	cfg := w.Config()
	require.NotNil(t, cfg)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestWatcher_StartFailsOnInvalidFile(t *testing.T) {
	path := writeConfigFile(t, "resources: [oops")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_ReloadOnChange(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	var mu sync.Mutex
	var reloaded *Config

	w, err := NewWatcher(path, func(cfg *Config) {
		mu.Lock()
		reloaded = cfg
		mu.Unlock()
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	updated := `
logging:
  level: warn
resources:
  - name: pet
    ttl: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloaded != nil && reloaded.Logging.Level == "warn"
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, "warn", w.Config().Logging.Level)
}

func TestWatcher_InvalidChangeKeepsLastConfig(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	var mu sync.Mutex
	var reloadErr error

	w, err := NewWatcher(path, nil,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorCallback(func(err error) {
			mu.Lock()
			reloadErr = err
			mu.Unlock()
		}))
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("resources: [oops"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reloadErr != nil
	}, 3*time.Second, 20*time.Millisecond)

	// The last good configuration is still served.
	assert.Equal(t, "debug", w.Config().Logging.Level)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := writeConfigFile(t, sampleYAML)

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
