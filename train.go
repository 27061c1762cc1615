// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"fmt"

	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/checkpoints"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/metrics"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context hyperparameter keys used by TrainModel, beyond the standard
// optimizers and layers parameters.
const (
	// ParamLossVariant selects the loss: one of "cross_entropy_l1",
	// "cross_entropy_decoder_l1", "cross_entropy", "binary_cross_entropy" or
	// "weighted_binary_cross_entropy".
	ParamLossVariant = "loss"

	// ParamL1Coefficient scales the L1 weight penalties.
	ParamL1Coefficient = "l1_coefficient"

	// ParamNumPositive and ParamNumExamples are the class counts consumed by
	// the weighted binary cross-entropy.
	ParamNumPositive = "num_positive"
	ParamNumExamples = "num_examples"
)

// CreateDefaultContext creates a context with the default training
// hyperparameters. Anything here can be overridden before calling
// TrainModel, e.g. from command-line flags via commandline.ParseContextSettings.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.ResetRNGState()
	ctx.SetParams(map[string]any{
		"train_steps": 200,

		ParamLossVariant:   "cross_entropy_l1",
		ParamL1Coefficient: 1e-5,
		ParamInitialSeed:   DefaultInitialSeed,

		optimizers.ParamOptimizer:    "adamw",
		optimizers.ParamLearningRate: 1e-4,
		layers.ParamDropoutRate:      0.1,
	})
	return ctx
}

// LossFromContext resolves the ParamLossVariant hyperparameter into one of
// the loss functions of this package. ctx must be the scope the model
// variables are created in, since the L1 variants enumerate them.
func LossFromContext(ctx *context.Context) (losses.LossFn, error) {
	variant := context.GetParamOr(ctx, ParamLossVariant, "cross_entropy")
	coefficient := context.GetParamOr(ctx, ParamL1Coefficient, 1e-5)
	switch variant {
	case "cross_entropy_l1":
		return CrossEntropyWithL1(ctx, coefficient), nil
	case "cross_entropy_decoder_l1":
		return CrossEntropyWithDecodeHeadL1(ctx, coefficient), nil
	case "cross_entropy":
		return CrossEntropy, nil
	case "binary_cross_entropy":
		return BinaryCrossEntropy, nil
	case "weighted_binary_cross_entropy":
		numPositive := context.GetParamOr(ctx, ParamNumPositive, 0)
		numTotal := context.GetParamOr(ctx, ParamNumExamples, 0)
		if numPositive <= 0 || numTotal <= numPositive {
			return nil, errors.Errorf(
				"weighted_binary_cross_entropy requires 0 < %q < %q, got %d and %d",
				ParamNumPositive, ParamNumExamples, numPositive, numTotal)
		}
		return WeightedBinaryCrossEntropy(numPositive, numTotal), nil
	default:
		return nil, errors.Errorf("unknown %q hyperparameter value %q", ParamLossVariant, variant)
	}
}

// newAccuracyMetric builds a mean accuracy metric for one-hot (or
// probability) labels: a hit is scored when the argmax of the predictions
// matches the argmax of the labels.
func newAccuracyMetric(name, shortName string) metrics.Interface {
	return metrics.NewMeanMetric(name, shortName, metrics.AccuracyMetricType,
		oneHotAccuracyGraph, nil)
}

func oneHotAccuracyGraph(_ *context.Context, labels, predictions []*Node) *Node {
	predicted := ArgMax(predictions[0], -1)
	truth := ArgMax(labels[0], -1)
	correct := ConvertDType(Equal(predicted, truth), predictions[0].DType())
	return ReduceAllMean(correct)
}

// TrainModel trains a model with plan p over trainDS, reporting metrics on
// evalDS at the end. Hyperparameters come from ctx (see
// CreateDefaultContext). If checkpointPath is non-empty the context and
// variables are checkpointed there, and training resumes from the stored
// global step.
func TrainModel(ctx *context.Context, backend backends.Backend, p *Plan,
	trainDS, evalDS train.Dataset, checkpointPath string) error {
	// Convention scope used for model creation.
	ctx = ctx.In("model").Checked(false)

	var checkpoint *checkpoints.Handler
	if checkpointPath != "" {
		var err error
		checkpoint, err = checkpoints.Build(ctx).
			Dir(checkpointPath).Keep(3).Done()
		if err != nil {
			return errors.WithMessage(err, "setting up checkpoints")
		}
		klog.V(1).Infof("checkpointing model to %q", checkpoint.Dir())
	}

	lossFn, err := LossFromContext(ctx)
	if err != nil {
		return err
	}

	trainer := train.NewTrainer(backend, ctx, TrainingModelFn(p),
		lossFn,
		optimizers.FromContext(ctx),
		[]metrics.Interface{newAccuracyMetric("Moving Accuracy", "~acc")},
		[]metrics.Interface{newAccuracyMetric("Mean Accuracy", "#acc")})

	loop := train.NewLoop(trainer)
	commandline.AttachProgressBar(loop)

	numTrainSteps := context.GetParamOr(ctx, "train_steps", 0)
	globalStep := int(optimizers.GetGlobalStep(ctx))
	if globalStep > 0 {
		trainer.SetContext(ctx.Reuse())
	}
	if globalStep < numTrainSteps {
		if _, err := loop.RunSteps(trainDS, numTrainSteps-globalStep); err != nil {
			return errors.WithMessage(err, "training loop")
		}
		klog.V(1).Infof("[step %d] median train step: %s",
			loop.LoopStep, loop.MedianTrainStepDuration())
		if checkpoint != nil {
			if err := checkpoint.Save(); err != nil {
				return errors.WithMessage(err, "saving checkpoint")
			}
		}
	}

	if evalDS != nil {
		fmt.Println()
		if err := commandline.ReportEval(trainer, evalDS); err != nil {
			return errors.WithMessage(err, "evaluating model")
		}
	}
	return nil
}
