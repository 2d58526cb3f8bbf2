// Package trainer drives a net.Model: the training controller runs optimizer
// steps under a monitored session with scheduled hooks, the evaluation
// controller polls the checkpoint directory and reports precision.
package trainer
