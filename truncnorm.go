// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"math"
	"math/rand/v2"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	. "github.com/gomlx/gomlx/pkg/support/exceptions"
	"k8s.io/klog/v2"
)

// TruncatedNormalFn returns a variable initializer that samples from a normal
// distribution with the given mean and standard deviation, truncated to the
// interval [lower, upper].
//
// Sampling uses the inverse-CDF method: a uniform draw over the CDF image of
// [lower, upper] is mapped back through the inverse error function, so no
// rejection loop is needed. Values are computed on the host and materialized
// as a constant of the requested shape and dtype.
//
// If mean is more than two standard deviations outside [lower, upper] the
// distribution is badly distorted by the truncation; a warning is logged and
// sampling proceeds anyway.
func TruncatedNormalFn(seed int64, mean, stddev, lower, upper float64) context.VariableInitializer {
	if stddev <= 0 {
		Panicf("TruncatedNormalFn: stddev must be positive, got %g", stddev)
	}
	if lower >= upper {
		Panicf("TruncatedNormalFn: empty truncation interval [%g, %g]", lower, upper)
	}
	if mean < lower-2*stddev || mean > upper+2*stddev {
		klog.Warningf("TruncatedNormalFn: mean (%g) is more than 2 standard deviations (%g) away from "+
			"[%g, %g]; the sampled distribution may be a poor approximation of the requested one.",
			mean, stddev, lower, upper)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9E3779B97F4A7C15))
	// CDF of the untruncated normal at the interval ends, rescaled to the
	// [-1, 1] domain of the inverse error function.
	cdfLow := math.Erf((lower - mean) / (stddev * math.Sqrt2))
	cdfHigh := math.Erf((upper - mean) / (stddev * math.Sqrt2))

	return func(g *Graph, shape shapes.Shape) *Node {
		values := make([]float64, shape.Size())
		for i := range values {
			u := cdfLow + rng.Float64()*(cdfHigh-cdfLow)
			v := math.Erfinv(u)*stddev*math.Sqrt2 + mean
			values[i] = min(max(v, lower), upper)
		}
		n := ConstTensor(g, tensors.FromFlatDataAndDimensions(values, shape.Dimensions...))
		if n.DType() != shape.DType {
			n = ConvertDType(n, shape.DType)
		}
		return n
	}
}
