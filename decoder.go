// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
)

// DecodeHead collapses the temporal-attention output into class logits.
//
// z has shape [NumSubmatrices+1, InputChannels+1, NumFilters+1]. Three 1×1
// projections successively eliminate the filter axis, remap the channel axis
// to DecoderTemporalFilters and halve (floor) the segment axis; a final
// linear layer maps the flattened remainder to [1, NumClasses] logits.
func DecodeHead(ctx *context.Context, p *Plan, z *Node) *Node {
	m := p.NumSubmatrices + 1
	c := p.InputChannels + 1
	z.AssertDims(m, c, NumFilters+1)

	// [C+1, M+1, F+1]: project the filter axis down to a single value.
	h := TransposeAllDims(z, 1, 0, 2)
	h = layers.Dense(ctx.In("reduce_filters"), h, true, 1)
	h = Squeeze(h, -1) // [C+1, M+1]

	// Remap channels to the temporal filter count: [M+1, C+1] → [M+1, N].
	h = TransposeAllDims(h, 1, 0)
	h = layers.Dense(ctx.In("reduce_channels"), h, true, p.DecoderTemporalFilters)

	// Halve the segment axis: [N, M+1] → [N, (M+1)/2], floor division.
	h = TransposeAllDims(h, 1, 0)
	h = layers.Dense(ctx.In("reduce_segments"), h, true, p.DecoderHalfSegments)
	h = TransposeAllDims(h, 1, 0) // [(M+1)/2, N]

	h = Reshape(h, 1, p.DecoderHalfSegments*p.DecoderTemporalFilters)
	return layers.Dense(ctx.In("classify"), h, true, p.NumClasses)
}
