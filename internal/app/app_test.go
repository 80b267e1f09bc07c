package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/artifacts"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/source/amazon"
	"github.com/timmy/stylematch/internal/source/googleshopping"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewWiresEnabledSources(t *testing.T) {
	cfg := defaultConfig(t)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Match)
	require.NotNil(t, a.Workspaces)
	require.Len(t, a.Sources, 2)
	assert.Equal(t, googleshopping.SourceID, a.Sources[0].GetSourceID())
	assert.Equal(t, amazon.SourceID, a.Sources[1].GetSourceID())
}

func TestNewSkipsDisabledSource(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sources.GoogleShopping.Enabled = false

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.Sources, 1)
	assert.Equal(t, amazon.SourceID, a.Sources[0].GetSourceID())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Sources.GoogleShopping.Enabled = false
	cfg.Sources.Amazon.Enabled = false

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewWithoutReachableCache(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = "127.0.0.1:1"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err, "an unreachable cache is not fatal")
	defer a.Close()
	assert.Nil(t, a.cache)
}

func TestSweepPurgesSidecars(t *testing.T) {
	for _, purge := range []bool{true, false} {
		t.Run(fmt.Sprintf("purge_on_sweep=%v", purge), func(t *testing.T) {
			cfg := defaultConfig(t)
			cfg.Artifacts.PurgeOnSweep = purge
			ctx := context.Background()

			a, err := New(ctx, cfg, nil)
			require.NoError(t, err)
			defer a.Close()
			require.NotNil(t, a.Sidecars)

			ws, err := a.Workspaces.Acquire(ctx)
			require.NoError(t, err)
			_, err = a.Sidecars.SaveResults(artifacts.WithMatchID(ctx, ws.ID()), amazon.SourceID, "q", nil)
			require.NoError(t, err)
			ws.Release()
			past := time.Now().Add(-30 * 24 * time.Hour)
			require.NoError(t, os.Chtimes(filepath.Join(ws.Dir(), ".done"), past, past))

			removed, err := a.Workspaces.Sweep(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, removed)

			_, err = a.Sidecars.Load(ctx, ws.ID(), amazon.SourceID)
			if purge {
				assert.ErrorIs(t, err, artifacts.ErrNotFound)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
