package main

import "context"
import "fmt"
import "os"
import "os/signal"
import "syscall"

import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/datasets/cifar"
import "github.com/neurlang/rres/device"
import "github.com/neurlang/rres/logging"
import "github.com/neurlang/rres/metrics"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/net/softmax"
import "github.com/neurlang/rres/trainer"
import "github.com/pkg/errors"
import "github.com/rs/zerolog"
import "github.com/spf13/cobra"
import "github.com/spf13/pflag"

type options struct {
	dataset        string
	mode           string
	dataPath       string
	imageSize      int
	evalBatchCount int
	evalOnce       bool
	logRoot        string
	numGPUs        int
	configFile     string
	metricsAddr    string
	maxSteps       int64
	pgo            string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "rres",
		Short:         "Train a CIFAR classifier or evaluate its checkpoints",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, o)
		},
	}
	bindFlags(cmd.Flags(), &o)
	return cmd
}

func bindFlags(f *pflag.FlagSet, o *options) {
	f.StringVar(&o.dataset, "dataset", string(config.Cifar10), "cifar10 or cifar100")
	f.StringVar(&o.mode, "mode", string(config.Train), "train or eval")
	f.StringVar(&o.dataPath, "data_path", "", "file pattern of the input records")
	f.IntVar(&o.imageSize, "image_size", 32, "image side length")
	f.IntVar(&o.evalBatchCount, "eval_batch_count", 50, "number of batches per evaluation pass")
	f.BoolVar(&o.evalOnce, "eval_once", false, "evaluate one checkpoint and exit")
	f.StringVar(&o.logRoot, "log_root", "", "directory of checkpoints and summaries")
	f.IntVar(&o.numGPUs, "num_gpus", 1, "number of gpus used, 0 or 1")
	f.StringVar(&o.configFile, "config", "", "optional TOML file overriding run tunables")
	f.StringVar(&o.metricsAddr, "metrics_addr", "", "serve prometheus metrics on this address")
	f.Int64Var(&o.maxSteps, "max_steps", 0, "stop training at this global step, 0 never stops")
	f.StringVar(&o.pgo, "pgo", "", "write a cpu profile to this file until exit")
}

func (o options) runConfig() (config.RunConfig, error) {
	dataset, err := config.ParseDataset(o.dataset)
	if err != nil {
		return config.RunConfig{}, err
	}
	mode, err := config.ParseMode(o.mode)
	if err != nil {
		return config.RunConfig{}, err
	}
	tunables := config.DefaultTunables()
	if o.configFile != "" {
		if tunables, err = config.LoadOverrides(o.configFile, tunables); err != nil {
			return config.RunConfig{}, err
		}
	}
	if o.maxSteps > 0 {
		tunables.MaxSteps = o.maxSteps
	}
	return config.RunConfig{
		Dataset:        dataset,
		Mode:           mode,
		DataPath:       o.dataPath,
		ImageSize:      o.imageSize,
		EvalBatchCount: o.evalBatchCount,
		EvalOnce:       o.evalOnce,
		LogRoot:        o.logRoot,
		NumGPUs:        o.numGPUs,
		Tunables:       tunables,
	}, nil
}

func run(ctx context.Context, o options) error {
	log := logging.ConfigureRuntime()

	rc, err := o.runConfig()
	if err != nil {
		return err
	}
	hps, err := config.Resolve(rc)
	if err != nil {
		return err
	}
	dev, err := device.Select(rc.NumGPUs, log)
	if err != nil {
		return err
	}
	log.Info().
		Str("dataset", string(rc.Dataset)).
		Str("mode", string(rc.Mode)).
		Str("device", dev.String()).
		Int("batch_size", hps.BatchSize).
		Int("num_classes", hps.NumClasses).
		Msg("starting")

	if o.pgo != "" {
		done, err := startProfile(o.pgo)
		if err != nil {
			return err
		}
		defer done()
	}
	if o.metricsAddr != "" {
		go serveMetrics(ctx, o.metricsAddr, log)
	}

	build := builder(rc, dev)
	switch rc.Mode {
	case config.Eval:
		err = trainer.Evaluate(ctx, rc, hps, build, log)
	default:
		err = trainer.Train(ctx, rc, hps, build, log)
	}
	if ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err())) {
		log.Info().Msg("stopped")
		return nil
	}
	return err
}

// builder reads the CIFAR records of the run and wires them to the
// reference engine, which fans out over the host threads of dev.
func builder(rc config.RunConfig, dev device.Device) net.Builder {
	return func(hps config.HyperParameters, mode config.Mode) (net.Model, error) {
		input, err := cifar.BuildInput(rc.Dataset, rc.DataPath, hps.BatchSize, mode, hps.ImageSize, hps.Seed)
		if err != nil {
			return nil, err
		}
		return softmax.New(hps, input, mode, dev.Threads), nil
	}
}

func serveMetrics(ctx context.Context, addr string, log zerolog.Logger) {
	if err := metrics.Serve(ctx, addr, log); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics listener")
	}
}
