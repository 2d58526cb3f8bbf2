// Package net defines the model contract the training and evaluation loops drive.
package net

import "context"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/summary"
import "github.com/pkg/errors"

var (
	// ErrNoTrainOp is returned by Train on a model built for evaluation.
	ErrNoTrainOp = errors.New("model has no train op")
	// ErrShapeMismatch is returned by Restore when a checkpoint does not fit the model.
	ErrShapeMismatch = errors.New("checkpoint does not match model")
	// ErrNotBuilt is returned when the model is run before Build.
	ErrNotBuilt = errors.New("model is not built")
)

// Outputs are the values fetched by one run of the model on one batch.
type Outputs struct {
	Loss        float64         // scalar cost including regularisation
	Predictions [][]float32     // per example class distribution
	Labels      [][]float32     // per example one-hot truth
	GlobalStep  int64           // global step after the run
	Summaries   summary.Summary // merged model summaries
}

// Model is a classifier wired to an input pipeline at construction.
type Model interface {
	// Build materialises the trainable parameters and the optimizer state.
	Build() error

	// NumParameters reports the number of trainable scalars.
	NumParameters() int

	// Train runs one optimizer step on the next batch with the given learning rate.
	Train(ctx context.Context, learningRate float64) (Outputs, error)

	// Forward runs the next batch without updating parameters.
	Forward(ctx context.Context) (Outputs, error)

	// GlobalStep is the number of optimizer steps applied so far.
	GlobalStep() int64

	// Snapshot copies the parameters, optimizer state and global step.
	Snapshot() checkpoint.Snapshot

	// Restore replaces the parameters with a snapshot.
	Restore(s checkpoint.Snapshot) error
}

// Builder acquires the input pipeline for a mode and wires a model to it.
// The model is returned unbuilt.
type Builder func(hps config.HyperParameters, mode config.Mode) (Model, error)
