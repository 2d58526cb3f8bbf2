// Package config resolves the run configuration and the model hyperparameters
// from the command line selection of dataset, mode and gpu count.
package config
