package main

import "context"
import "os"
import "path/filepath"
import "testing"

import "github.com/neurlang/rres/checkpoint"
import "github.com/stretchr/testify/require"

// writeRecords writes n cifar10 records of 2x2 images whose label is the
// brightest channel.
func writeRecords(t *testing.T, name string, n int) {
	t.Helper()
	var data []byte
	for i := 0; i < n; i++ {
		label := byte(i % 3)
		data = append(data, label)
		for c := byte(0); c < 3; c++ {
			v := byte(20)
			if c == label {
				v = 220
			}
			data = append(data, v, v, v+byte(i%5), v)
		}
	}
	require.NoError(t, os.WriteFile(name, data, 0o644))
}

func TestTrainThenEvaluateOnce(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data_batch_1.bin")
	writeRecords(t, data, 30)
	tunables := filepath.Join(dir, "rres.toml")
	require.NoError(t, os.WriteFile(tunables, []byte("poll_interval = \"1ms\"\n"), 0o644))
	root := filepath.Join(dir, "log")

	base := []string{"--data_path", data, "--log_root", root, "--image_size", "2",
		"--num_gpus", "0", "--config", tunables}

	train := parse(t, append(base, "--mode", "train", "--max_steps", "3")...)
	require.NoError(t, run(context.Background(), train))

	st, err := checkpoint.NewStore(root, 5).Latest()
	require.NoError(t, err)
	require.Equal(t, int64(3), st.Step)

	eval := parse(t, append(base, "--mode", "eval", "--eval_once", "--eval_batch_count", "2")...)
	require.NoError(t, run(context.Background(), eval))

	events, err := filepath.Glob(filepath.Join(root, "eval", "events.out.*"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	raw, err := os.ReadFile(events[0])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"tag":"best_precision"`)
}
