package trainer

import "github.com/neurlang/rres/metrics"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/summary"
import "github.com/rs/zerolog"

// Hook is a behaviour scheduled around every step of a monitored session.
type Hook interface {
	// Begin is called once with the global step the session starts from.
	Begin(step int64)

	// BeforeRun is called before every step. It may feed inputs into the step
	// or request a stop, in which case the step is not run.
	BeforeRun(rc *RunContext)

	// AfterRun is called with the values fetched by the step.
	AfterRun(rc *RunContext, v RunValues)
}

// RunContext carries the inputs of one step.
type RunContext struct {
	Step         int64   // global step before the run
	LearningRate float64 // fed into the optimizer step

	stop bool
}

// RequestStop ends the session after the current hook callbacks.
func (rc *RunContext) RequestStop() {
	rc.stop = true
}

// StopRequested reports whether a hook asked the session to stop.
func (rc *RunContext) StopRequested() bool {
	return rc.stop
}

// RunValues are the results of one step.
type RunValues struct {
	Outputs   net.Outputs
	Precision float64
}

// everyN fires on its first check and then once at least n steps have
// passed since it last fired.
type everyN struct {
	n     int64
	last  int64
	fired bool
}

func (t *everyN) check(step int64) bool {
	if t.fired && step < t.last+t.n {
		return false
	}
	t.fired = true
	t.last = step
	return true
}

// LearningRateSetter feeds the scheduled learning rate into every step and
// recomputes it from the global step the step produced.
type LearningRateSetter struct {
	Base float64
	rate float64
}

func (l *LearningRateSetter) Begin(step int64) {
	l.rate = Schedule(l.Base, step)
}

func (l *LearningRateSetter) BeforeRun(rc *RunContext) {
	rc.LearningRate = l.rate
}

func (l *LearningRateSetter) AfterRun(rc *RunContext, v RunValues) {
	l.rate = Schedule(l.Base, v.Outputs.GlobalStep)
}

// Rate is the rate the next step will be fed.
func (l *LearningRateSetter) Rate() float64 {
	return l.rate
}

// LoggingHook logs step, loss and precision every N iterations.
type LoggingHook struct {
	Every  int
	Logger zerolog.Logger
	iter   int64
	timer  everyN
}

func (h *LoggingHook) Begin(step int64) {
	h.timer = everyN{n: int64(h.Every)}
	h.iter = 0
}

func (h *LoggingHook) BeforeRun(rc *RunContext) {}

func (h *LoggingHook) AfterRun(rc *RunContext, v RunValues) {
	if h.timer.check(h.iter) {
		h.Logger.Info().
			Int64("step", v.Outputs.GlobalStep).
			Float64("loss", v.Outputs.Loss).
			Float64("precision", v.Precision).
			Msg("train")
	}
	h.iter++
}

// SummaryWriter receives step-keyed summaries.
type SummaryWriter interface {
	Add(s summary.Summary, step int64) error
	Flush() error
}

// SummarySaverHook writes the merged model summaries and the step precision
// every N global steps.
type SummarySaverHook struct {
	Every  int
	Writer SummaryWriter
	Logger zerolog.Logger
	timer  everyN
}

func (h *SummarySaverHook) Begin(step int64) {
	h.timer = everyN{n: int64(h.Every)}
}

func (h *SummarySaverHook) BeforeRun(rc *RunContext) {}

func (h *SummarySaverHook) AfterRun(rc *RunContext, v RunValues) {
	step := v.Outputs.GlobalStep
	if !h.timer.check(step) {
		return
	}
	s := summary.Merge(v.Outputs.Summaries, summary.Scalar("precision", v.Precision))
	if err := h.Writer.Add(s, step); err != nil {
		h.Logger.Error().Err(err).Int64("step", step).Msg("write summaries")
		return
	}
	if err := h.Writer.Flush(); err != nil {
		h.Logger.Error().Err(err).Int64("step", step).Msg("flush summaries")
	}
}

// StopAtStepHook stops the session once the global step reaches Last.
type StopAtStepHook struct {
	Last int64
}

func (h *StopAtStepHook) Begin(step int64) {}

func (h *StopAtStepHook) BeforeRun(rc *RunContext) {
	if rc.Step >= h.Last {
		rc.RequestStop()
	}
}

func (h *StopAtStepHook) AfterRun(rc *RunContext, v RunValues) {
	if v.Outputs.GlobalStep >= h.Last {
		rc.RequestStop()
	}
}

// metricsHook publishes every step to the metrics gauges.
type metricsHook struct{}

func (metricsHook) Begin(step int64) {}

func (metricsHook) BeforeRun(rc *RunContext) {}

func (metricsHook) AfterRun(rc *RunContext, v RunValues) {
	metrics.RecordTrainStep(v.Outputs.GlobalStep, v.Outputs.Loss, v.Precision, rc.LearningRate)
}
