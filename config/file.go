package config

import "strings"
import "time"

import "github.com/BurntSushi/toml"
import "github.com/pkg/errors"

// fileTunables mirrors Tunables in TOML. Durations are strings accepted by
// time.ParseDuration.
type fileTunables struct {
	PollInterval           string  `toml:"poll_interval"`
	SummarySteps           int     `toml:"summary_steps"`
	LogSteps               int     `toml:"log_steps"`
	SaveCheckpointSteps    int     `toml:"save_checkpoint_steps"`
	SaveCheckpointInterval string  `toml:"save_checkpoint_interval"`
	KeepCheckpoints        int     `toml:"keep_checkpoints"`
	MaxSteps               int64   `toml:"max_steps"`
	LearningRate           float64 `toml:"learning_rate"`
	WeightDecayRate        float64 `toml:"weight_decay_rate"`
	Seed                   int64   `toml:"seed"`
}

// LoadOverrides applies the keys present in the TOML file at path on top of t.
// Keys absent from the file leave t untouched.
func LoadOverrides(path string, t Tunables) (Tunables, error) {
	var raw fileTunables
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Tunables{}, errors.Wrapf(err, "load run config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Tunables{}, invalid("config", undecoded[0].String(), "unknown key")
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return Tunables{}, invalid("poll_interval", raw.PollInterval, err.Error())
		}
		t.PollInterval = d
	}
	if meta.IsDefined("save_checkpoint_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SaveCheckpointInterval))
		if err != nil {
			return Tunables{}, invalid("save_checkpoint_interval", raw.SaveCheckpointInterval, err.Error())
		}
		t.SaveCheckpointInterval = d
	}
	if meta.IsDefined("summary_steps") {
		t.SummarySteps = raw.SummarySteps
	}
	if meta.IsDefined("log_steps") {
		t.LogSteps = raw.LogSteps
	}
	if meta.IsDefined("save_checkpoint_steps") {
		t.SaveCheckpointSteps = raw.SaveCheckpointSteps
	}
	if meta.IsDefined("keep_checkpoints") {
		t.KeepCheckpoints = raw.KeepCheckpoints
	}
	if meta.IsDefined("max_steps") {
		t.MaxSteps = raw.MaxSteps
	}
	if meta.IsDefined("learning_rate") {
		t.LearningRate = raw.LearningRate
	}
	if meta.IsDefined("weight_decay_rate") {
		t.WeightDecayRate = raw.WeightDecayRate
	}
	if meta.IsDefined("seed") {
		t.Seed = raw.Seed
	}
	return t, nil
}
