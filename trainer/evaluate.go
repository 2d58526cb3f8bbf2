package trainer

import "context"
import "time"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/metrics"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/summary"
import "github.com/pkg/errors"
import "github.com/rs/zerolog"

// CheckpointSource is the read side of a checkpoint store.
type CheckpointSource interface {
	Dir() string
	Latest() (checkpoint.State, error)
	Load(path string) (checkpoint.Snapshot, error)
}

// Report is the result of one evaluation pass.
type Report struct {
	Checkpoint    string
	Step          int64
	Loss          float64 // of the last batch
	Correct       int
	Total         int
	Precision     float64
	BestPrecision float64
}

// Evaluator reloads the latest checkpoint on an interval and measures its
// precision over a fixed number of batches. The best precision is kept for
// the lifetime of the Evaluator only.
type Evaluator struct {
	Model       net.Model
	Checkpoints CheckpointSource
	Writer      SummaryWriter
	Batches     int           // batches per pass, at least 1
	Once        bool          // return after the first reported pass
	Interval    time.Duration // sleep before every poll
	Logger      zerolog.Logger

	best float64
}

// Best is the highest precision seen so far.
func (e *Evaluator) Best() float64 {
	return e.best
}

// Run polls until ctx is done, or until the first reported pass when Once is
// set. Checkpoints that are unavailable or not written yet are retried after
// the next sleep.
func (e *Evaluator) Run(ctx context.Context) error {
	for {
		if err := sleep(ctx, e.Interval); err != nil {
			return err
		}
		_, reported, err := e.Iterate(ctx)
		if err != nil {
			return err
		}
		if reported && e.Once {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Iterate performs one poll. It reports false without an error when there is
// no checkpoint to evaluate yet or the store is unavailable.
func (e *Evaluator) Iterate(ctx context.Context) (Report, bool, error) {
	st, err := e.Checkpoints.Latest()
	if errors.Is(err, checkpoint.ErrUnavailable) {
		e.Logger.Error().Err(err).Msg("Cannot restore checkpoint")
		metrics.RecordPoll(metrics.PollUnavailable)
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, err
	}
	if st.Path == "" {
		e.Logger.Info().Msgf("No model to eval yet at %s", e.Checkpoints.Dir())
		metrics.RecordPoll(metrics.PollMissing)
		return Report{}, false, nil
	}
	e.Logger.Info().Msgf("Loading checkpoint %s", st.Path)

	snap, err := e.Checkpoints.Load(st.Path)
	if errors.Is(err, checkpoint.ErrUnavailable) {
		e.Logger.Error().Err(err).Msg("Cannot restore checkpoint")
		metrics.RecordPoll(metrics.PollUnavailable)
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, err
	}
	if err := e.Model.Restore(snap); err != nil {
		return Report{}, false, errors.Wrapf(err, "restore %s", st.Path)
	}

	r := Report{Checkpoint: st.Path}
	var summaries summary.Summary
	for i := 0; i < e.Batches; i++ {
		out, err := e.Model.Forward(ctx)
		if err != nil {
			return Report{}, false, errors.Wrapf(err, "eval batch %d", i)
		}
		correct, total := CountCorrect(out.Predictions, out.Labels)
		r.Correct += correct
		r.Total += total
		r.Loss = out.Loss
		r.Step = out.GlobalStep
		summaries = out.Summaries
	}
	if r.Total == 0 {
		return Report{}, false, errors.Errorf("evaluated no examples in %d batches", e.Batches)
	}
	r.Precision = float64(r.Correct) / float64(r.Total)
	if r.Precision > e.best {
		e.best = r.Precision
	}
	r.BestPrecision = e.best

	if err := e.Writer.Add(summary.Scalar("precision", r.Precision), r.Step); err != nil {
		return Report{}, false, err
	}
	if err := e.Writer.Add(summary.Scalar("best_precision", r.BestPrecision), r.Step); err != nil {
		return Report{}, false, err
	}
	if err := e.Writer.Add(summaries, r.Step); err != nil {
		return Report{}, false, err
	}

	e.Logger.Info().
		Int64("step", r.Step).
		Msgf("Loss: %.3f, Precision: %.3f, Best precision: %.3f", r.Loss, r.Precision, r.BestPrecision)
	if err := e.Writer.Flush(); err != nil {
		return Report{}, false, err
	}
	metrics.RecordPoll(metrics.PollEvaluated)
	metrics.RecordEval(r.Step, r.Loss, r.Precision, r.BestPrecision)
	return r, true, nil
}

// Evaluate builds the model in eval mode and runs an Evaluator on the
// checkpoints under the log root, writing to its eval directory.
func Evaluate(ctx context.Context, run config.RunConfig, hps config.HyperParameters, build net.Builder, log zerolog.Logger) error {
	log = log.With().Str("component", "eval").Logger()

	model, err := build(hps, config.Eval)
	if err != nil {
		return errors.Wrap(err, "build input and model")
	}
	if err := model.Build(); err != nil {
		return errors.Wrap(err, "build model")
	}

	writer, err := summary.NewWriter(run.EvalDir())
	if err != nil {
		return err
	}
	defer writer.Close()

	e := &Evaluator{
		Model:       model,
		Checkpoints: checkpoint.NewStore(run.CheckpointDir(), run.KeepCheckpoints),
		Writer:      writer,
		Batches:     run.EvalBatchCount,
		Once:        run.EvalOnce,
		Interval:    run.PollInterval,
		Logger:      log,
	}
	return e.Run(ctx)
}
