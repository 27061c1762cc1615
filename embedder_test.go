// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchEmbeddingShape(t *testing.T) {
	p, err := NewPlan(testConfig())
	require.NoError(t, err)

	ctx := context.New()
	got := context.MustExecOnce(getTestBackend(), ctx,
		func(ctx *context.Context, g *Graph) *Node {
			x := IotaFull(g, shapes.Make(dtypes.Float32, p.InputChannels, p.InputLength))
			return PatchEmbedding(ctx, p, x)
		})
	require.NoError(t, got.Shape().Check(dtypes.Float32,
		p.InputChannels, NumFilters, p.ReducedLength))
}

// TestPatchEmbeddingDepthwise checks that channels do not mix: perturbing a
// single input channel only changes that channel's feature maps.
func TestPatchEmbeddingDepthwise(t *testing.T) {
	p, err := NewPlan(testConfig())
	require.NoError(t, err)

	ctx := context.New().Checked(false)
	diffT := context.MustExecOnce(getTestBackend(), ctx,
		func(ctx *context.Context, g *Graph) *Node {
			a := IotaFull(g, shapes.Make(dtypes.Float32, p.InputChannels, p.InputLength))
			a = OnePlus(a)
			// b equals a with channel 1 zeroed out.
			channel := Iota(g, a.Shape(), 0)
			mask := ConvertDType(NotEqual(channel, Scalar(g, channel.DType(), 1)), a.DType())
			b := Mul(a, mask)

			embA := PatchEmbedding(ctx, p, a)
			embB := PatchEmbedding(ctx, p, b)
			return Abs(Sub(embA, embB))
		})

	diff := diffT.Value().([][][]float32)
	for c := range p.InputChannels {
		var total float32
		for _, row := range diff[c] {
			for _, v := range row {
				total += v
			}
		}
		if c == 1 {
			assert.Greater(t, total, float32(0), "perturbed channel must change")
		} else {
			assert.Zero(t, total, "channel %d must be unaffected", c)
		}
	}
}
