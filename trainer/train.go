package trainer

import "context"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/summary"
import "github.com/pkg/errors"
import "github.com/rs/zerolog"

// Train builds the model in train mode and runs optimizer steps until ctx is
// done or the configured step limit is reached. Checkpoints go to the log
// root, summaries to its train directory.
func Train(ctx context.Context, run config.RunConfig, hps config.HyperParameters, build net.Builder, log zerolog.Logger) error {
	log = log.With().Str("component", "train").Logger()

	model, err := build(hps, config.Train)
	if err != nil {
		return errors.Wrap(err, "build input and model")
	}
	if err := model.Build(); err != nil {
		return errors.Wrap(err, "build model")
	}
	log.Info().Msgf("Total # of Parameters: %d", model.NumParameters())

	writer, err := summary.NewWriter(run.TrainDir())
	if err != nil {
		return err
	}
	defer writer.Close()

	lr := &LearningRateSetter{Base: hps.LearningRate}
	hooks := []Hook{
		&LoggingHook{Every: run.LogSteps, Logger: log},
		lr,
		metricsHook{},
	}
	if run.MaxSteps > 0 {
		hooks = append(hooks, &StopAtStepHook{Last: run.MaxSteps})
	}

	sess, err := NewMonitoredSession(SessionConfig{
		Model: model,
		Store: checkpoint.NewStore(run.CheckpointDir(), run.KeepCheckpoints),
		Hooks: hooks,
		ChiefOnlyHooks: []Hook{
			&SummarySaverHook{Every: run.SummarySteps, Writer: writer, Logger: log},
		},
		IsChief:                true,
		SaveCheckpointSteps:    run.SaveCheckpointSteps,
		SaveCheckpointInterval: run.SaveCheckpointInterval,
		Logger:                 log,
	})
	if err != nil {
		return err
	}

	if err := sess.Loop(ctx); err != nil {
		return err
	}
	log.Info().Int64("step", model.GlobalStep()).Float64("learning_rate", lr.Rate()).Msg("training stopped")
	return nil
}
