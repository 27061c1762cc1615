// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	. "github.com/gomlx/gomlx/pkg/support/exceptions"
)

// PatchEmbedding runs the one-dimensional depth-wise convolutional embedder
// over a recording x of shape [InputChannels, InputLength].
//
// Three cascaded valid convolutions process each channel independently: the
// first two keep one feature map per channel, the third expands every channel
// into NumFilters feature maps. Each convolution shortens the time axis by
// KernelSize−1 samples, so the result has shape
// [InputChannels, NumFilters, ReducedLength].
func PatchEmbedding(ctx *context.Context, p *Plan, x *Node) *Node {
	x.AssertDims(p.InputChannels, p.InputLength)
	c := p.InputChannels

	// Channels-last layout for the convolutions: [batch=1, time, channels].
	h := ExpandAxes(TransposeAllDims(x, 1, 0), 0)
	h = depthwiseConv(ctx.In("conv_0"), h, p.KernelSize, c, 1)
	h = depthwiseConv(ctx.In("conv_1"), h, p.KernelSize, c, 1)
	h = depthwiseConv(ctx.In("conv_2"), h, p.KernelSize, c, NumFilters)

	// The grouped convolution emits output channels group-major, so channel
	// c·NumFilters+f is filter f of input channel c.
	h = Reshape(h, p.ReducedLength, c, NumFilters)
	return TransposeAllDims(h, 1, 2, 0)
}

// depthwiseConv applies a valid 1D convolution with one group per input
// channel, each group producing filtersPerChannel outputs. x is
// channels-last: [1, time, channels].
func depthwiseConv(ctx *context.Context, x *Node, kernelSize, channels, filtersPerChannel int) *Node {
	g := x.Graph()
	dtype := x.DType()
	if x.Shape().Dimensions[2] != channels {
		Panicf("depthwiseConv: x has %d channels, want %d (shape %s)",
			x.Shape().Dimensions[2], channels, x.Shape())
	}
	outChannels := channels * filtersPerChannel

	// Kernel layout [kernelSize, inputChannelsPerGroup=1, outputChannels].
	kernelVar := ctx.VariableWithShape("weights", shapes.Make(dtype, kernelSize, 1, outChannels))
	out := Convolve(x, kernelVar.ValueGraph(g)).
		ChannelGroupCount(channels).
		NoPadding().
		Done()

	biasVar := ctx.VariableWithShape("biases", shapes.Make(dtype, outChannels))
	return Add(out, Reshape(biasVar.ValueGraph(g), 1, 1, outChannels))
}
