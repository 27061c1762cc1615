// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"fmt"
	"math"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

const (
	// mlpRatio is the hidden-layer expansion factor of each block's MLP.
	mlpRatio = 4

	// ParamInitialSeed is the context parameter ("eegformer_init_seed") with
	// the seed used by the truncated-normal initialization of the aggregation
	// token and positional bias of each attention stage.
	ParamInitialSeed = "eegformer_init_seed"

	// DefaultInitialSeed is used when ParamInitialSeed is not set.
	DefaultInitialSeed = int64(42)
)

// stageGeometry binds the axis roles of one attention stage: the outer axis
// is carried through as an independent batch, the sequence axis receives the
// aggregation token, and dim is split across heads.
type stageGeometry struct {
	outer, seq, dim, heads, headDim int
}

// RegionalAttention attends across the NumFilters feature maps of each EEG
// channel independently. patches is the embedder output
// [InputChannels, NumFilters, ReducedLength]; the result is
// [InputChannels, NumFilters+1, ReducedLength], the extra row being the
// aggregation token.
func RegionalAttention(ctx *context.Context, p *Plan, patches *Node) *Node {
	patches.AssertDims(p.InputChannels, NumFilters, p.ReducedLength)
	return attentionStage(ctx, p, stageGeometry{
		outer:   p.InputChannels,
		seq:     NumFilters,
		dim:     p.ReducedLength,
		heads:   p.RegionalHeads,
		headDim: p.RegionalHeadDim,
	}, patches)
}

// SynchronousAttention attends across the EEG channels for each feature-map
// row independently. z is the regional output
// [InputChannels, NumFilters+1, ReducedLength]; the result is
// [NumFilters+1, InputChannels+1, ReducedLength].
func SynchronousAttention(ctx *context.Context, p *Plan, z *Node) *Node {
	z.AssertDims(p.InputChannels, NumFilters+1, p.ReducedLength)
	tokens := TransposeAllDims(z, 1, 0, 2)
	return attentionStage(ctx, p, stageGeometry{
		outer:   NumFilters + 1,
		seq:     p.InputChannels,
		dim:     p.ReducedLength,
		heads:   p.SynchronousHeads,
		headDim: p.SynchronousHeadDim,
	}, tokens)
}

// TemporalAttention averages the time axis into NumSubmatrices segments,
// flattens each segment's [InputChannels+1, NumFilters+1] slab into a single
// token and attends across the segments. z is the synchronous output
// [NumFilters+1, InputChannels+1, ReducedLength]; the result is
// [NumSubmatrices+1, InputChannels+1, NumFilters+1].
func TemporalAttention(ctx *context.Context, p *Plan, z *Node) *Node {
	z.AssertDims(NumFilters+1, p.InputChannels+1, p.ReducedLength)
	x := TransposeAllDims(z, 2, 1, 0)
	x = Reshape(x, p.NumSubmatrices, p.SegmentLength, p.InputChannels+1, NumFilters+1)
	x = ReduceMean(x, 1)
	tokens := Reshape(x, 1, p.NumSubmatrices, p.TemporalDim)

	out := attentionStage(ctx, p, stageGeometry{
		outer:   1,
		seq:     p.NumSubmatrices,
		dim:     p.TemporalDim,
		heads:   p.TemporalHeads,
		headDim: p.TemporalHeadDim,
	}, tokens)
	out = layers.LayerNormalization(ctx.In("final_norm"), out, -1).
		Epsilon(layerNormEpsilon).Done()
	return Reshape(out, p.NumSubmatrices+1, p.InputChannels+1, NumFilters+1)
}

// attentionStage is the attention algorithm shared by the three stages,
// parameterized only by axis geometry. tokens has shape [outer, seq, dim].
//
// The initial state is a learned linear projection of every token, with a
// learned aggregation token prepended and a learned positional bias added.
// Each block then computes per-token multi-head query/key/value projections,
// gates each value by its own query·key score (scaled by 1/√headDim), runs a
// prefix-sum over the sequence axis — every position accumulates all earlier
// positions, except the final position which is left untouched — and applies
// an output projection with a residual, followed by a layer-normalized MLP
// with a second residual.
func attentionStage(ctx *context.Context, p *Plan, geo stageGeometry, tokens *Node) *Node {
	g := tokens.Graph()
	dtype := tokens.DType()
	tokens.AssertDims(geo.outer, geo.seq, geo.dim)

	seed := context.GetParamOr(ctx, ParamInitialSeed, DefaultInitialSeed)
	normalCtx := ctx.WithInitializer(initializers.RandomNormalFn(ctx, 1.0))
	truncCtx := ctx.WithInitializer(TruncatedNormalFn(seed, 0, 0.02, -2.0, 2.0))

	wProj := normalCtx.In("project").
		VariableWithShape("w_project", shapes.Make(dtype, geo.dim, geo.dim)).
		ValueGraph(g)
	z := Einsum("lm,sjm->sjl", wProj, tokens)

	aggToken := truncCtx.
		VariableWithShape("agg_token", shapes.Make(dtype, geo.outer, 1, geo.dim)).
		ValueGraph(g)
	z = Concatenate([]*Node{aggToken, z}, 1)

	posBias := truncCtx.
		VariableWithShape("pos_bias", shapes.Make(dtype, geo.outer, geo.seq+1, geo.dim)).
		ValueGraph(g)
	z = Add(z, posBias)

	n := geo.seq + 1
	accum := accumulationMatrix(g, dtype, n)
	scale := 1.0 / math.Sqrt(float64(geo.headDim))

	for block := range p.NumBlocks {
		blockCtx := ctx.In(fmt.Sprintf("block_%d", block))
		blockNormalCtx := blockCtx.WithInitializer(initializers.RandomNormalFn(ctx, 1.0))

		wQKV := blockNormalCtx.
			VariableWithShape("w_qkv", shapes.Make(dtype, 3, geo.heads, geo.headDim, geo.dim)).
			ValueGraph(g)
		wOut := blockNormalCtx.
			VariableWithShape("w_output", shapes.Make(dtype, geo.dim, geo.dim)).
			ValueGraph(g)

		normed := layers.LayerNormalization(blockCtx.In("attention_norm"), z, -1).
			Epsilon(layerNormEpsilon).Done()

		project := func(idx int) *Node {
			w := Reshape(SliceAxis(wQKV, 0, AxisElem(idx)), geo.heads, geo.headDim, geo.dim)
			return Einsum("hdm,sjm->sjhd", w, normed)
		}
		q, k, v := project(0), project(1), project(2)

		// Per-token self-gating score, one scalar per head.
		score := Einsum("sjhd,sjhd->sjh", MulScalar(q, scale), k)
		gated := Einsum("sjh,sjhd->sjhd", score, v)

		// Prefix-sum over the sequence axis, heads merged back into dim.
		flat := Reshape(gated, geo.outer, n, geo.dim)
		acc := Einsum("jk,skm->sjm", accum, flat)

		z = Add(Einsum("nm,sjm->sjn", wOut, acc), z)

		h := layers.LayerNormalization(blockCtx.In("output_norm"), z, -1).
			Epsilon(layerNormEpsilon).Done()
		z = Add(tokenMLP(blockCtx.In("mlp"), h, geo.dim), z)
	}
	return z
}

// tokenMLP is the per-token feed-forward applied after attention in every
// block: dim → mlpRatio·dim → dim with a GELU in between. Dropout is only
// active when the context is marked as training and a dropout rate is set.
func tokenMLP(ctx *context.Context, x *Node, dim int) *Node {
	h := layers.Dense(ctx.In("hidden"), x, true, mlpRatio*dim)
	h = activations.Gelu(h)
	h = layers.DropoutFromContext(ctx, h)
	h = layers.Dense(ctx.In("output"), h, true, dim)
	return layers.DropoutFromContext(ctx, h)
}

// accumulationMatrix returns the [n, n] matrix that implements the sequence
// prefix-sum as a single contraction: row j (for j < n−1) sums positions
// 0..j, while the last row keeps only its own position.
func accumulationMatrix(g *Graph, dtype dtypes.DType, n int) *Node {
	sh := shapes.Make(dtypes.Int32, n, n)
	row := Iota(g, sh, 0)
	col := Iota(g, sh, 1)
	last := Scalar(g, dtypes.Int32, n-1)

	keep := And(
		LessOrEqual(col, row),
		Or(LessThan(row, last), Equal(col, row)))
	return ConvertDType(keep, dtype)
}
