// Copyright 2026 The EEGformer Authors. SPDX-License-Identifier: Apache-2.0

package eegformer

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/datasets"
)

// syntheticSampleRate is the nominal sampling rate, in Hz, of generated
// recordings.
const syntheticSampleRate = 128.0

// SyntheticDataset builds an in-memory dataset of numExamples labeled
// recordings, cycling through the classes. Each recording is a
// class-dependent dominant rhythm (6 Hz plus 4 Hz per class index) with a
// random per-channel phase and amplitude, buried in Gaussian noise; labels
// are one-hot rows of shape [NumClasses].
//
// The dataset yields inputs of shape [batch, InputChannels, InputLength] and
// matches the label layout expected by the cross-entropy losses in this
// package.
func SyntheticDataset(backend backends.Backend, p *Plan, numExamples int, seed int64) (*datasets.InMemoryDataset, error) {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)+1))
	signals := make([]float32, 0, numExamples*p.InputChannels*p.InputLength)
	labels := make([]float32, 0, numExamples*p.NumClasses)

	for i := range numExamples {
		class := i % p.NumClasses
		freq := 6.0 + 4.0*float64(class)
		for range p.InputChannels {
			phase := rng.Float64() * 2 * math.Pi
			amplitude := 0.5 + rng.Float64()
			for t := range p.InputLength {
				v := amplitude * math.Sin(2*math.Pi*freq*float64(t)/syntheticSampleRate+phase)
				v += rng.NormFloat64() * 0.3
				signals = append(signals, float32(v))
			}
		}
		for k := range p.NumClasses {
			if k == class {
				labels = append(labels, 1)
			} else {
				labels = append(labels, 0)
			}
		}
	}

	inputs := tensors.FromFlatDataAndDimensions(signals, numExamples, p.InputChannels, p.InputLength)
	oneHot := tensors.FromFlatDataAndDimensions(labels, numExamples, p.NumClasses)
	return datasets.InMemoryFromData(backend, "synthetic-eeg",
		[]any{inputs}, []any{oneHot})
}
