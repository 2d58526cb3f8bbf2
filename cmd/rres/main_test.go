package main

import "os"
import "path/filepath"
import "testing"
import "time"

import "github.com/neurlang/rres/config"
import "github.com/spf13/pflag"
import "github.com/stretchr/testify/require"

func parse(t *testing.T, args ...string) options {
	t.Helper()
	var o options
	f := pflag.NewFlagSet("rres", pflag.ContinueOnError)
	bindFlags(f, &o)
	require.NoError(t, f.Parse(args))
	return o
}

func TestFlagDefaults(t *testing.T) {
	o := parse(t)
	require.Equal(t, "cifar10", o.dataset)
	require.Equal(t, "train", o.mode)
	require.Equal(t, 32, o.imageSize)
	require.Equal(t, 50, o.evalBatchCount)
	require.False(t, o.evalOnce)
	require.Equal(t, 1, o.numGPUs)
	require.Zero(t, o.maxSteps)
}

func TestRunConfigFromFlags(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rres.toml")
	require.NoError(t, os.WriteFile(file, []byte("poll_interval = \"5s\"\nmax_steps = 10\n"), 0o644))

	o := parse(t, "--dataset", "cifar100", "--mode", "eval", "--data_path", "x*",
		"--log_root", dir, "--num_gpus", "0", "--eval_once", "--config", file)
	rc, err := o.runConfig()
	require.NoError(t, err)
	require.Equal(t, config.Cifar100, rc.Dataset)
	require.Equal(t, config.Eval, rc.Mode)
	require.True(t, rc.EvalOnce)
	require.Equal(t, 5*time.Second, rc.PollInterval)
	require.Equal(t, int64(10), rc.MaxSteps)

	o.maxSteps = 20
	rc, err = o.runConfig()
	require.NoError(t, err)
	require.Equal(t, int64(20), rc.MaxSteps)
}

func TestRunConfigRejectsUnknownMode(t *testing.T) {
	o := parse(t, "--mode", "predict")
	_, err := o.runConfig()
	require.ErrorIs(t, err, config.ErrConfiguration)
}
