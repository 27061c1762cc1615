// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"os"
	"sync"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/simplego"
)

var (
	testBackendOnce sync.Once
	testBackend     backends.Backend
)

// getTestBackend returns a shared backend for tests. It defaults to the pure
// Go backend so tests are hermetic, unless the environment selects another.
func getTestBackend() backends.Backend {
	testBackendOnce.Do(func() {
		if _, found := os.LookupEnv(backends.ConfigEnvVar); !found {
			must.M(os.Setenv(backends.ConfigEnvVar, "go"))
		}
		testBackend = backends.MustNew()
	})
	return testBackend
}

// testConfig is a small but structurally complete configuration used across
// the package tests: ReducedLength=34, TemporalDim=484.
func testConfig() Config {
	return Config{
		InputChannels:          3,
		InputLength:            40,
		KernelSize:             3,
		NumBlocks:              1,
		RegionalHeads:          2,
		SynchronousHeads:       2,
		TemporalHeads:          4,
		NumSubmatrices:         2,
		DecoderTemporalFilters: 3,
		NumClasses:             2,
	}
}

func TestNewPlan(t *testing.T) {
	p, err := NewPlan(Config{
		InputChannels:          19,
		InputLength:            256,
		KernelSize:             9,
		NumBlocks:              3,
		RegionalHeads:          8,
		SynchronousHeads:       8,
		TemporalHeads:          4,
		NumSubmatrices:         4,
		DecoderTemporalFilters: 10,
		NumClasses:             2,
	})
	require.NoError(t, err)

	assert.Equal(t, 232, p.ReducedLength) // 256 − 3·8
	assert.Equal(t, 58, p.SegmentLength)
	assert.Equal(t, 2420, p.TemporalDim) // 20·121
	assert.Equal(t, 29, p.RegionalHeadDim)
	assert.Equal(t, 29, p.SynchronousHeadDim)
	assert.Equal(t, 605, p.TemporalHeadDim)
	assert.Equal(t, 2, p.DecoderHalfSegments) // floor(5/2)
	assert.Equal(t, dtypes.Float32, p.DType)
	assert.NotEmpty(t, p.String())
}

func TestNewPlanRejectsBadConfigs(t *testing.T) {
	base := testConfig()
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"regional heads don't divide", func(c *Config) { c.RegionalHeads = 7 }},
		{"synchronous heads don't divide", func(c *Config) { c.SynchronousHeads = 3 }},
		{"temporal heads don't divide", func(c *Config) { c.TemporalHeads = 3 }},
		{"heads larger than dim", func(c *Config) { c.RegionalHeads = 68 }},
		{"submatrices don't divide", func(c *Config) { c.NumSubmatrices = 4 }},
		{"kernel eats whole signal", func(c *Config) { c.KernelSize = 15 }},
		{"zero channels", func(c *Config) { c.InputChannels = 0 }},
		{"negative blocks", func(c *Config) { c.NumBlocks = -1 }},
		{"zero classes", func(c *Config) { c.NumClasses = 0 }},
		{"integer dtype", func(c *Config) { c.DType = dtypes.Int32 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			_, err := NewPlan(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	// The base configuration itself must be valid.
	_, err := NewPlan(base)
	require.NoError(t, err)
}
