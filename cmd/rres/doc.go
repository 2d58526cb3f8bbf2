// Package main provides the rres driver that trains a CIFAR classifier or
// evaluates its checkpoints. Training and evaluation run as separate
// invocations sharing one log root:
//
//	rres --mode train --dataset cifar10 --data_path 'cifar10/data_batch*' --log_root /tmp/resnet
//	rres --mode eval --dataset cifar10 --data_path 'cifar10/test_batch*' --log_root /tmp/resnet
//
// Checkpoints are written to the log root, training summaries to its train
// directory and evaluation summaries to its eval directory.
package main
