// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

// Package eegformer implements a transformer classifier for raw
// electroencephalogram (EEG) recordings, built on GoMLX computation graphs.
//
// A recording of shape [channels, samples] flows through four stages:
//
//   - PatchEmbedding: three cascaded depth-wise 1D convolutions turn each
//     channel into 120 temporal feature maps, shortening the time axis by
//     3·(kernel−1) samples.
//   - Three attention stages (regional, synchronous, temporal), each a stack
//     of transformer blocks whose attention uses a per-token self-gating
//     score and a running prefix-sum over earlier tokens instead of an
//     all-pairs attention matrix. Each stage prepends a learned aggregation
//     token and adds a learned positional bias.
//   - DecodeHead: three 1×1 convolutions and a final linear projection
//     collapse the temporal cube into per-class logits.
//
// The Model type bundles the stages behind a single Forward call that
// returns softmax class probabilities, and TrainingModelFn adapts the same
// graph for the train package. The five loss builders in this package pair
// categorical or binary cross-entropy with optional L1 weight penalties.
//
// All shapes are derived up-front by NewPlan, which rejects configurations
// whose dimensions do not divide evenly before any graph is built.
package eegformer

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
)

const (
	// NumFilters is the number of temporal feature maps the patch embedder
	// produces per EEG channel.
	NumFilters = 120

	// numConvStages is the number of cascaded depth-wise convolutions in the
	// patch embedder.
	numConvStages = 3

	// layerNormEpsilon is used by every layer normalization in the model.
	layerNormEpsilon = 1e-5
)

// ErrInvalidConfig is wrapped by all errors returned from NewPlan.
var ErrInvalidConfig = errors.New("invalid eegformer configuration")

// Config holds the user-facing hyperparameters of an EEGformer model.
type Config struct {
	// InputChannels is the number of EEG electrodes (C).
	InputChannels int

	// InputLength is the number of time samples per recording (T).
	InputLength int

	// KernelSize is the width of each depth-wise convolution kernel.
	KernelSize int

	// NumBlocks is the number of transformer blocks per attention stage.
	NumBlocks int

	// RegionalHeads, SynchronousHeads and TemporalHeads are the number of
	// attention heads of the respective stages. Each must divide the feature
	// dimension of its stage, see Plan.
	RegionalHeads    int
	SynchronousHeads int
	TemporalHeads    int

	// NumSubmatrices (M) is the number of segments the temporal stage
	// averages the time axis into. It must divide the reduced length.
	NumSubmatrices int

	// DecoderTemporalFilters (N) is the channel width of the second decoder
	// convolution.
	DecoderTemporalFilters int

	// NumClasses is the size of the classifier output.
	NumClasses int

	// DType is the floating point type of all variables and activations.
	// Defaults to Float32.
	DType dtypes.DType
}

// Plan is a Config with every derived dimension of the model resolved and
// validated. All graph-building functions in this package take a Plan, so
// shape errors surface at construction time rather than mid-graph.
type Plan struct {
	Config

	// ReducedLength is the time axis after the embedder's three valid
	// convolutions: InputLength − 3·(KernelSize−1). It is also the feature
	// dimension of the regional and synchronous attention stages.
	ReducedLength int

	// SegmentLength is ReducedLength / NumSubmatrices, the number of time
	// steps averaged into each temporal segment.
	SegmentLength int

	// TemporalDim is the flattened feature dimension of the temporal stage:
	// (InputChannels+1) · (NumFilters+1).
	TemporalDim int

	// Per-head feature sizes of the three stages.
	RegionalHeadDim    int
	SynchronousHeadDim int
	TemporalHeadDim    int

	// DecoderHalfSegments is (NumSubmatrices+1)/2 (floor), the segment axis
	// after the decoder's halving convolution.
	DecoderHalfSegments int
}

// NewPlan validates cfg and derives every internal dimension of the model.
// All failures wrap ErrInvalidConfig.
func NewPlan(cfg Config) (*Plan, error) {
	if cfg.DType == dtypes.InvalidDType {
		cfg.DType = dtypes.Float32
	}
	if !cfg.DType.IsFloat() {
		return nil, errors.Wrapf(ErrInvalidConfig, "dtype must be a float type, got %s", cfg.DType)
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"InputChannels", cfg.InputChannels},
		{"InputLength", cfg.InputLength},
		{"KernelSize", cfg.KernelSize},
		{"NumBlocks", cfg.NumBlocks},
		{"RegionalHeads", cfg.RegionalHeads},
		{"SynchronousHeads", cfg.SynchronousHeads},
		{"TemporalHeads", cfg.TemporalHeads},
		{"NumSubmatrices", cfg.NumSubmatrices},
		{"DecoderTemporalFilters", cfg.DecoderTemporalFilters},
		{"NumClasses", cfg.NumClasses},
	} {
		if f.value <= 0 {
			return nil, errors.Wrapf(ErrInvalidConfig, "%s must be positive, got %d", f.name, f.value)
		}
	}

	p := &Plan{Config: cfg}
	p.ReducedLength = cfg.InputLength - numConvStages*(cfg.KernelSize-1)
	if p.ReducedLength <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"InputLength=%d leaves no samples after three convolutions with KernelSize=%d",
			cfg.InputLength, cfg.KernelSize)
	}

	var err error
	p.RegionalHeadDim, err = headDim("regional", p.ReducedLength, cfg.RegionalHeads)
	if err != nil {
		return nil, err
	}
	p.SynchronousHeadDim, err = headDim("synchronous", p.ReducedLength, cfg.SynchronousHeads)
	if err != nil {
		return nil, err
	}
	p.TemporalDim = (cfg.InputChannels + 1) * (NumFilters + 1)
	p.TemporalHeadDim, err = headDim("temporal", p.TemporalDim, cfg.TemporalHeads)
	if err != nil {
		return nil, err
	}

	if p.ReducedLength%cfg.NumSubmatrices != 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"reduced length %d is not divisible by NumSubmatrices=%d",
			p.ReducedLength, cfg.NumSubmatrices)
	}
	p.SegmentLength = p.ReducedLength / cfg.NumSubmatrices
	p.DecoderHalfSegments = (cfg.NumSubmatrices + 1) / 2
	return p, nil
}

// headDim returns dim/heads, failing if heads does not evenly partition dim.
func headDim(stage string, dim, heads int) (int, error) {
	if dim%heads != 0 || dim/heads == 0 {
		return 0, errors.Wrapf(ErrInvalidConfig,
			"%s stage: %d heads cannot evenly split feature dimension %d", stage, heads, dim)
	}
	return dim / heads, nil
}

// String implements fmt.Stringer with a one-line summary of the plan.
func (p *Plan) String() string {
	return fmt.Sprintf(
		"Plan{C=%d, T=%d→%d, K=%d, blocks=%d, heads=%d/%d/%d, M=%d×%d, N=%d, classes=%d, %s}",
		p.InputChannels, p.InputLength, p.ReducedLength, p.KernelSize, p.NumBlocks,
		p.RegionalHeads, p.SynchronousHeads, p.TemporalHeads,
		p.NumSubmatrices, p.SegmentLength, p.DecoderTemporalFilters, p.NumClasses, p.DType)
}
