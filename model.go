// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Model bundles the full pipeline — patch embedder, three attention stages
// and decode head — behind a compiled Forward call on an explicit backend.
//
// All parameters live in the given context; Forward is a pure function of
// the input and the current parameter values. A Model is safe for concurrent
// Forward calls once built, since graph execution does not mutate the
// context.
type Model struct {
	backend backends.Backend
	ctx     *context.Context
	plan    *Plan
	exec    *context.Exec
}

// New builds a Model for the given configuration. Variables are created (or
// reused, if ctx already holds them, e.g. loaded from a checkpoint) under
// ctx's current scope on first execution.
func New(backend backends.Backend, ctx *context.Context, cfg Config) (*Model, error) {
	plan, err := NewPlan(cfg)
	if err != nil {
		return nil, err
	}
	m := &Model{
		backend: backend,
		// Variables may be created here or by a Trainer sharing the context.
		ctx:  ctx.Checked(false),
		plan: plan,
	}
	m.exec, err = context.NewExec(backend, m.ctx,
		func(ctx *context.Context, signal *Node) *Node {
			return ClassifierGraph(ctx, m.plan, signal)
		})
	if err != nil {
		return nil, errors.WithMessage(err, "compiling eegformer forward graph")
	}
	return m, nil
}

// Plan returns the resolved shape plan of the model.
func (m *Model) Plan() *Plan { return m.plan }

// Context returns the context holding the model parameters.
func (m *Model) Context() *context.Context { return m.ctx }

// Forward classifies one recording of shape [InputChannels, InputLength] and
// returns class probabilities of shape [1, NumClasses].
func (m *Model) Forward(signal *tensors.Tensor) (probabilities *tensors.Tensor, err error) {
	dims := signal.Shape().Dimensions
	if len(dims) != 2 || dims[0] != m.plan.InputChannels || dims[1] != m.plan.InputLength {
		return nil, errors.Errorf("eegformer: signal shape %s, want [%d, %d]",
			signal.Shape(), m.plan.InputChannels, m.plan.InputLength)
	}
	outputs, err := m.exec.Exec(signal)
	if err != nil {
		return nil, errors.WithMessage(err, "eegformer forward pass")
	}
	return outputs[0], nil
}

// ClassifierGraph builds the forward graph: signal [InputChannels,
// InputLength] to softmax probabilities [1, NumClasses]. Each stage creates
// its variables in its own sub-scope of ctx.
func ClassifierGraph(ctx *context.Context, p *Plan, signal *Node) *Node {
	x := signal
	if x.DType() != p.DType {
		x = ConvertDType(x, p.DType)
	}
	x = PatchEmbedding(ctx.In("embedder"), p, x)
	x = RegionalAttention(ctx.In("regional"), p, x)
	x = SynchronousAttention(ctx.In("synchronous"), p, x)
	x = TemporalAttention(ctx.In("temporal"), p, x)
	logits := DecodeHead(ctx.In("decoder"), p, x)
	return Softmax(logits, -1)
}

// TrainingModelFn adapts ClassifierGraph to the train package: inputs[0] is
// a batch of one recording, shape [1, InputChannels, InputLength], and the
// returned predictions are the [1, NumClasses] probabilities.
func TrainingModelFn(p *Plan) func(ctx *context.Context, spec any, inputs []*Node) []*Node {
	return func(ctx *context.Context, spec any, inputs []*Node) []*Node {
		signal := Squeeze(inputs[0], 0)
		return []*Node{ClassifierGraph(ctx, p, signal)}
	}
}
