// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	. "github.com/gomlx/gomlx/pkg/support/exceptions"
)

// l1WeightNames are the variable names counted as weights by the L1
// penalties: projection matrices, convolution and dense kernels and
// layer-normalization gains. Biases, offsets, aggregation tokens and
// positional biases are excluded.
var l1WeightNames = map[string]bool{
	"weights":   true,
	"gain":      true,
	"w_project": true,
	"w_qkv":     true,
	"w_output":  true,
}

// CrossEntropy is a losses.LossFn returning the mean element-wise log-loss
// between one-hot (or probability) labels and predicted probabilities:
// mean(−(y·log p + (1−y)·log(1−p))). Labels and predictions must have the
// same dimensions.
func CrossEntropy(labels, predictions []*Node) *Node {
	p := predictions[0]
	y := ConvertDType(labels[0], p.DType())
	if !y.Shape().Equal(p.Shape()) {
		Panicf("CrossEntropy: labels shape %s and predictions shape %s differ",
			y.Shape(), p.Shape())
	}
	ls := Neg(Add(Mul(y, Log(p)), Mul(OneMinus(y), Log(OneMinus(p)))))
	return ReduceAllMean(ls)
}

// CrossEntropyWithL1 returns CrossEntropy plus coefficient times the sum of
// absolute values of every weight tensor under ctx's scope. Pass the same
// (scoped) context the model builds its variables in.
func CrossEntropyWithL1(ctx *context.Context, coefficient float64) losses.LossFn {
	return func(labels, predictions []*Node) *Node {
		loss := CrossEntropy(labels, predictions)
		penalty := l1WeightSum(ctx, predictions[0].Graph(), loss.DType())
		return Add(loss, MulScalar(penalty, coefficient))
	}
}

// CrossEntropyWithDecodeHeadL1 is like CrossEntropyWithL1 but only
// regularizes the decode head's weights, a cheaper penalty for large models.
// ctx must be the same context passed to ClassifierGraph (the decode head
// lives in its "decoder" sub-scope).
func CrossEntropyWithDecodeHeadL1(ctx *context.Context, coefficient float64) losses.LossFn {
	return CrossEntropyWithL1(ctx.In("decoder"), coefficient)
}

// BinaryCrossEntropy is a losses.LossFn for two-class models with scalar 0/1
// labels: predictions are the [batch, 2] probabilities and the loss is
// mean(−(y·log p₁ + (1−y)·log p₀)).
func BinaryCrossEntropy(labels, predictions []*Node) *Node {
	y, p0, p1 := binarySplit(labels, predictions)
	ls := Neg(Add(Mul(y, Log(p1)), Mul(OneMinus(y), Log(p0))))
	return ReduceAllMean(ls)
}

// WeightedBinaryCrossEntropy returns a class-balanced BinaryCrossEntropy:
// given numPositive positive examples among numTotal, the positive term is
// scaled by numTotal/(2·numPositive) and the negative term by
// numTotal/(2·(numTotal−numPositive)). With a balanced dataset both weights
// are 1 and it reduces to BinaryCrossEntropy.
func WeightedBinaryCrossEntropy(numPositive, numTotal int) losses.LossFn {
	if numPositive <= 0 || numPositive >= numTotal {
		Panicf("WeightedBinaryCrossEntropy: numPositive=%d must be in (0, numTotal=%d)",
			numPositive, numTotal)
	}
	w0 := float64(numTotal) / (2 * float64(numTotal-numPositive))
	w1 := float64(numTotal) / (2 * float64(numPositive))
	return func(labels, predictions []*Node) *Node {
		y, p0, p1 := binarySplit(labels, predictions)
		positive := MulScalar(Mul(y, Log(p1)), w1)
		negative := MulScalar(Mul(OneMinus(y), Log(p0)), w0)
		return ReduceAllMean(Neg(Add(positive, negative)))
	}
}

// binarySplit validates the two-class prediction shape and returns the label
// vector and the per-class probability columns, all rank matched.
func binarySplit(labels, predictions []*Node) (y, p0, p1 *Node) {
	p := predictions[0]
	dims := p.Shape().Dimensions
	if len(dims) != 2 || dims[1] != 2 {
		Panicf("binary cross-entropy requires [batch, 2] probabilities, got %s", p.Shape())
	}
	p0 = Squeeze(SliceAxis(p, 1, AxisElem(0)), 1)
	p1 = Squeeze(SliceAxis(p, 1, AxisElem(1)), 1)
	y = ConvertDType(labels[0], p.DType())
	if y.Rank() == 2 && y.Shape().Dimensions[1] == 1 {
		y = Squeeze(y, 1)
	}
	if y.Rank() != 1 || y.Shape().Dimensions[0] != dims[0] {
		Panicf("binary cross-entropy requires [batch] labels, got %s for %s predictions",
			labels[0].Shape(), p.Shape())
	}
	return
}

// l1WeightSum adds up |w| over every variable under ctx's scope whose name
// is in l1WeightNames.
func l1WeightSum(ctx *context.Context, g *Graph, dtype dtypes.DType) *Node {
	var sum *Node
	for v := range ctx.IterVariablesInScope() {
		if !l1WeightNames[v.Name()] {
			continue
		}
		value := v.ValueGraph(g)
		if value.DType() != dtype {
			value = ConvertDType(value, dtype)
		}
		term := ReduceAllSum(Abs(value))
		if sum == nil {
			sum = term
		} else {
			sum = Add(sum, term)
		}
	}
	if sum == nil {
		return Scalar(g, dtype, 0)
	}
	return sum
}
