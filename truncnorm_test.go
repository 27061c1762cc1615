// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTruncNormal materializes numSamples float64 draws from the
// initializer on the test backend.
func sampleTruncNormal(t *testing.T, seed int64, mean, stddev, lower, upper float64, numSamples int) []float64 {
	init := TruncatedNormalFn(seed, mean, stddev, lower, upper)
	got, err := ExecOnce(getTestBackend(), func(g *Graph) *Node {
		return init(g, shapes.Make(dtypes.Float64, numSamples))
	})
	require.NoError(t, err)
	return got.Value().([]float64)
}

func TestTruncatedNormalMoments(t *testing.T) {
	// Bounds at ±100σ: effectively an untruncated normal.
	values := sampleTruncNormal(t, 17, 0, 0.02, -2, 2, 10_000)

	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	n := float64(len(values))
	mean := sum / n
	stddev := math.Sqrt(sumSq/n - mean*mean)

	assert.InDelta(t, 0.0, mean, 0.002)
	assert.InDelta(t, 0.02, stddev, 0.002)
}

func TestTruncatedNormalBounds(t *testing.T) {
	lower, upper := -0.5, 0.5
	values := sampleTruncNormal(t, 3, 0, 1, lower, upper, 10_000)
	outerThird := 0
	for _, v := range values {
		require.GreaterOrEqual(t, v, lower)
		require.LessOrEqual(t, v, upper)
		if math.Abs(v) > upper/3 {
			outerThird++
		}
	}
	// The distribution must actually spread over the interval, not collapse
	// to the center.
	assert.Greater(t, outerThird, len(values)/10)
}

func TestTruncatedNormalFarMean(t *testing.T) {
	// Mean way outside the interval: logs a warning but still respects the
	// bounds (everything lands near the closest edge).
	values := sampleTruncNormal(t, 5, 10, 1, -2, 2, 1000)
	for _, v := range values {
		require.GreaterOrEqual(t, v, -2.0)
		require.LessOrEqual(t, v, 2.0)
	}
}

func TestTruncatedNormalDeterministic(t *testing.T) {
	a := sampleTruncNormal(t, 42, 0, 0.02, -2, 2, 100)
	b := sampleTruncNormal(t, 42, 0, 0.02, -2, 2, 100)
	assert.Equal(t, a, b)

	c := sampleTruncNormal(t, 43, 0, 0.02, -2, 2, 100)
	assert.NotEqual(t, a, c)
}

func TestTruncatedNormalInvalidArgs(t *testing.T) {
	require.Panics(t, func() { TruncatedNormalFn(1, 0, 0, -2, 2) })
	require.Panics(t, func() { TruncatedNormalFn(1, 0, 1, 2, -2) })
}
