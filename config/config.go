package config

import "fmt"
import "path/filepath"
import "strings"
import "time"

import "github.com/pkg/errors"

// Dataset names one of the two supported image datasets.
type Dataset string

const (
	Cifar10  Dataset = "cifar10"
	Cifar100 Dataset = "cifar100"
)

// Mode selects the controller the process runs.
type Mode string

const (
	Train Mode = "train"
	Eval  Mode = "eval"
)

// ErrConfiguration is wrapped by every resolution failure.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an unsupported selection. It is raised before any
// resource is acquired.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s=%q: %s", ErrConfiguration, e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

func invalid(field, value, reason string) error {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// ParseDataset accepts exactly cifar10 or cifar100.
func ParseDataset(s string) (Dataset, error) {
	switch Dataset(s) {
	case Cifar10, Cifar100:
		return Dataset(s), nil
	}
	return "", invalid("dataset", s, "only support cifar10 or cifar100")
}

// ParseMode accepts exactly train or eval.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Train, Eval:
		return Mode(s), nil
	}
	return "", invalid("mode", s, "only support train or eval")
}

// RunConfig is built once at process start and passed to the controllers.
type RunConfig struct {
	Dataset        Dataset // cifar10 or cifar100
	Mode           Mode    // train or eval
	DataPath       string  // file pattern of the input records
	ImageSize      int     // image side length
	EvalBatchCount int     // number of batches per evaluation pass
	EvalOnce       bool    // evaluate a single time and exit
	LogRoot        string  // checkpoints live here, summaries in train/ and eval/
	NumGPUs        int     // 0 or 1

	Tunables
}

// Tunables are the run parameters the fixed selection does not determine.
// They default to the values of DefaultTunables and may be overridden from a
// TOML file.
type Tunables struct {
	PollInterval           time.Duration // evaluation sleep between polls
	SummarySteps           int           // summary saver period in steps
	LogSteps               int           // tensor logger period in iterations
	SaveCheckpointSteps    int           // 0 disables the step trigger
	SaveCheckpointInterval time.Duration // 0 disables the time trigger
	KeepCheckpoints        int           // number of checkpoint files retained
	MaxSteps               int64         // 0 runs until stopped
	LearningRate           float64       // base learning rate
	WeightDecayRate        float64
	Seed                   int64 // input shuffling and parameter init
}

// DefaultTunables returns the settings of the reference training recipe.
func DefaultTunables() Tunables {
	return Tunables{
		PollInterval:           60 * time.Second,
		SummarySteps:           100,
		LogSteps:               100,
		SaveCheckpointInterval: 600 * time.Second,
		KeepCheckpoints:        5,
		LearningRate:           0.1,
		WeightDecayRate:        0.0002,
		Seed:                   1,
	}
}

// Validate rejects selections the controllers cannot run with.
func (c RunConfig) Validate() error {
	if _, err := ParseDataset(string(c.Dataset)); err != nil {
		return err
	}
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.NumGPUs != 0 && c.NumGPUs != 1 {
		return invalid("num_gpus", fmt.Sprint(c.NumGPUs), "only support 0 or 1 gpu")
	}
	if strings.TrimSpace(c.DataPath) == "" {
		return invalid("data_path", c.DataPath, "is required")
	}
	if strings.TrimSpace(c.LogRoot) == "" {
		return invalid("log_root", c.LogRoot, "is required")
	}
	if c.ImageSize < 1 {
		return invalid("image_size", fmt.Sprint(c.ImageSize), "must be positive")
	}
	if c.EvalBatchCount < 1 {
		return invalid("eval_batch_count", fmt.Sprint(c.EvalBatchCount), "must be at least 1")
	}
	if c.SummarySteps < 1 || c.LogSteps < 1 {
		return invalid("summary_steps", fmt.Sprint(c.SummarySteps, "/", c.LogSteps), "periods must be positive")
	}
	if c.PollInterval < 0 {
		return invalid("poll_interval", c.PollInterval.String(), "must not be negative")
	}
	if c.LearningRate <= 0 {
		return invalid("learning_rate", fmt.Sprint(c.LearningRate), "must be positive")
	}
	return nil
}

// CheckpointDir is where training writes and evaluation reads checkpoints.
func (c RunConfig) CheckpointDir() string {
	return c.LogRoot
}

// TrainDir holds the training summaries.
func (c RunConfig) TrainDir() string {
	return filepath.Join(c.LogRoot, "train")
}

// EvalDir holds the evaluation summaries.
func (c RunConfig) EvalDir() string {
	return filepath.Join(c.LogRoot, "eval")
}
