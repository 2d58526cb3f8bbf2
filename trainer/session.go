package trainer

import "context"
import "time"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/net"
import "github.com/pkg/errors"
import "github.com/rs/zerolog"

// SessionConfig configures a MonitoredSession.
type SessionConfig struct {
	Model          net.Model
	Store          *checkpoint.Store
	Hooks          []Hook
	ChiefOnlyHooks []Hook // run only when IsChief
	IsChief        bool   // the single worker that saves checkpoints and summaries

	SaveCheckpointSteps    int           // 0 disables the step trigger
	SaveCheckpointInterval time.Duration // 0 disables the time trigger

	Logger zerolog.Logger
	Now    func() time.Time // defaults to time.Now
}

// MonitoredSession runs optimizer steps on a model, restoring it from the
// latest checkpoint first and saving checkpoints as it goes.
type MonitoredSession struct {
	cfg      SessionConfig
	hooks    []Hook
	steps    everyN
	lastSave time.Time
	stopped  bool
}

// NewMonitoredSession restores the model from the store, or keeps its fresh
// parameters when the store is empty, and begins every hook at the resulting
// global step. The chief saves the starting checkpoint.
func NewMonitoredSession(cfg SessionConfig) (*MonitoredSession, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &MonitoredSession{cfg: cfg}
	s.hooks = append(s.hooks, cfg.Hooks...)
	if cfg.IsChief {
		s.hooks = append(s.hooks, cfg.ChiefOnlyHooks...)
		if err := cfg.Store.Init(); err != nil {
			return nil, err
		}
	}

	path, err := Resume(cfg.Model, cfg.Store)
	if err != nil {
		return nil, errors.Wrap(err, "restore session")
	}
	step := cfg.Model.GlobalStep()
	if path != "" {
		cfg.Logger.Info().Str("checkpoint", path).Int64("step", step).Msg("restored")
	} else {
		cfg.Logger.Info().Str("dir", cfg.Store.Dir()).Msg("no checkpoint, starting fresh")
	}

	s.steps = everyN{n: int64(cfg.SaveCheckpointSteps)}
	s.steps.check(step)
	if cfg.IsChief {
		if err := s.save(); err != nil {
			return nil, err
		}
	}

	for _, h := range s.hooks {
		h.Begin(step)
	}
	return s, nil
}

// ShouldStop reports whether a hook requested a stop or ctx is done.
func (s *MonitoredSession) ShouldStop(ctx context.Context) bool {
	return s.stopped || ctx.Err() != nil
}

// Run executes one optimizer step surrounded by the hooks.
func (s *MonitoredSession) Run(ctx context.Context) error {
	rc := &RunContext{Step: s.cfg.Model.GlobalStep()}
	for _, h := range s.hooks {
		h.BeforeRun(rc)
	}
	if rc.StopRequested() {
		s.stopped = true
		return nil
	}

	out, err := s.cfg.Model.Train(ctx, rc.LearningRate)
	if err != nil {
		return errors.Wrapf(err, "step %d", rc.Step)
	}
	v := RunValues{Outputs: out, Precision: Precision(out.Predictions, out.Labels)}
	for _, h := range s.hooks {
		h.AfterRun(rc, v)
	}
	if rc.StopRequested() {
		s.stopped = true
	}

	if s.cfg.IsChief && s.saveDue(out.GlobalStep) {
		if err := s.save(); err != nil {
			// the next trigger tries again
			s.cfg.Logger.Error().Err(err).Int64("step", out.GlobalStep).Msg("checkpoint save failed")
		}
	}
	return nil
}

func (s *MonitoredSession) saveDue(step int64) bool {
	if s.cfg.SaveCheckpointSteps > 0 && s.steps.check(step) {
		return true
	}
	return s.cfg.SaveCheckpointInterval > 0 && s.cfg.Now().Sub(s.lastSave) >= s.cfg.SaveCheckpointInterval
}

func (s *MonitoredSession) save() error {
	path, err := s.cfg.Store.Save(s.cfg.Model.Snapshot())
	if err != nil {
		return err
	}
	s.lastSave = s.cfg.Now()
	s.cfg.Logger.Debug().Str("checkpoint", path).Msg("saved")
	return nil
}

// Close saves the final checkpoint.
func (s *MonitoredSession) Close() error {
	if !s.cfg.IsChief {
		return nil
	}
	return s.save()
}

// Loop runs steps until ctx is done or a hook requests a stop, then closes the
// session. Cancellation is a normal stop.
func (s *MonitoredSession) Loop(ctx context.Context) error {
	for !s.ShouldStop(ctx) {
		if err := s.Run(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			return err
		}
	}
	return s.Close()
}
