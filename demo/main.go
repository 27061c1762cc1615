// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

// Demo trainer for the EEG transformer classifier.
//
// It generates a synthetic EEG dataset, trains the full pipeline for
// --train_steps steps (settable with -set) and reports the evaluation
// accuracy. Model hyperparameters come from flags, training hyperparameters
// from the context settings.
package main

import (
	"flag"
	"fmt"

	"github.com/eegml/eegformer"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagCheckpoint = flag.String("checkpoint", "",
		"Directory to save and load checkpoints from. If left empty, no checkpoints are created.")
	flagExamples = flag.Int("examples", 32, "Number of synthetic recordings to train on.")

	// Model hyperparameters.
	flagChannels   = flag.Int("channels", 19, "Number of EEG channels.")
	flagLength     = flag.Int("length", 256, "Number of time samples per recording.")
	flagKernel     = flag.Int("kernel", 9, "Kernel size of the depth-wise convolutions.")
	flagBlocks     = flag.Int("blocks", 3, "Transformer blocks per attention stage.")
	flagRegHeads   = flag.Int("regional_heads", 8, "Attention heads of the regional stage.")
	flagSyncHeads  = flag.Int("synchronous_heads", 8, "Attention heads of the synchronous stage.")
	flagTempHeads  = flag.Int("temporal_heads", 4, "Attention heads of the temporal stage.")
	flagSubmatrix  = flag.Int("submatrices", 4, "Number of temporal segments (submatrices).")
	flagDecFilters = flag.Int("decoder_filters", 10, "Temporal filter count of the decode head.")
	flagClasses    = flag.Int("classes", 2, "Number of output classes.")
)

func createDefaultContext() *context.Context {
	return eegformer.CreateDefaultContext()
}

func main() {
	ctx := createDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()
	_ = must.M1(commandline.ParseContextSettings(ctx, *settings))
	must.M(mainWithContext(ctx, *flagCheckpoint))
}

func mainWithContext(ctx *context.Context, checkpointPath string) error {
	backend := backends.MustNew()
	fmt.Printf("Backend: %s (%s)\n", backend.Name(), backend.Description())

	plan, err := eegformer.NewPlan(eegformer.Config{
		InputChannels:          *flagChannels,
		InputLength:            *flagLength,
		KernelSize:             *flagKernel,
		NumBlocks:              *flagBlocks,
		RegionalHeads:          *flagRegHeads,
		SynchronousHeads:       *flagSyncHeads,
		TemporalHeads:          *flagTempHeads,
		NumSubmatrices:         *flagSubmatrix,
		DecoderTemporalFilters: *flagDecFilters,
		NumClasses:             *flagClasses,
	})
	if err != nil {
		return err
	}
	fmt.Println(plan)

	trainData, err := eegformer.SyntheticDataset(backend, plan, *flagExamples, 1)
	if err != nil {
		return err
	}
	trainDS := trainData.BatchSize(1, true).Shuffle().Infinite(true)

	evalData, err := eegformer.SyntheticDataset(backend, plan, *flagExamples/2, 2)
	if err != nil {
		return err
	}
	evalDS := evalData.BatchSize(1, false)

	return eegformer.TrainModel(ctx, backend, plan, trainDS, evalDS, checkpointPath)
}
