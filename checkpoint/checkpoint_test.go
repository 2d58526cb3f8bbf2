package checkpoint

import "bytes"
import "os"
import "path/filepath"
import "testing"

import "github.com/stretchr/testify/require"

func snapshot(step int64) Snapshot {
	return Snapshot{
		GlobalStep: step,
		Variables: []Variable{
			{Name: "logits/weights", Shape: []int{2, 2}, Values: []float64{1, 2, 3, float64(step)}},
			{Name: "logits/biases", Shape: []int{2}, Values: []float64{0.5, -0.5}},
		},
	}
}

func TestLatestWithoutIndex(t *testing.T) {
	st, err := NewStore(t.TempDir(), 5).Latest()
	require.NoError(t, err)
	require.Empty(t, st.Path)
}

func TestSaveLatestLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 5)
	require.NoError(t, s.Init())

	path, err := s.Save(snapshot(100))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "model.ckpt-100"), path)

	st, err := s.Latest()
	require.NoError(t, err)
	require.Equal(t, path, st.Path)
	require.Equal(t, int64(100), st.Step)

	snap, err := s.Load(st.Path)
	require.NoError(t, err)
	require.Equal(t, snapshot(100), snap)
}

func TestRetention(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 2)
	for _, step := range []int64{1, 2, 3, 3} {
		_, err := s.Save(snapshot(step))
		require.NoError(t, err)
	}
	st, err := s.Latest()
	require.NoError(t, err)
	require.Equal(t, int64(3), st.Step)
	require.Equal(t, []string{filepath.Join(dir, "model.ckpt-2"), filepath.Join(dir, "model.ckpt-3")}, st.All)

	_, err = os.Stat(filepath.Join(dir, "model.ckpt-1"))
	require.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3) // two checkpoints and the index, no temp files
}

func TestDamagedIndexIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexName), []byte(`{"model_checkpoint_path": "model.ck`), 0o644))

	_, err := NewStore(dir, 5).Latest()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestUnreadableIndexIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	// a directory where the index file should be
	require.NoError(t, os.Mkdir(filepath.Join(dir, IndexName), 0o755))

	_, err := NewStore(dir, 5).Latest()
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLoadVanishedAndDamaged(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 5)

	_, err := s.Load(filepath.Join(dir, "model.ckpt-9"))
	require.ErrorIs(t, err, ErrUnavailable)

	bad := filepath.Join(dir, "model.ckpt-10")
	require.NoError(t, os.WriteFile(bad, []byte("not lzw json"), 0o644))
	_, err = s.Load(bad)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUnavailable)
}

func TestStepOf(t *testing.T) {
	require.Equal(t, int64(42), StepOf("/x/model.ckpt-42"))
	require.Equal(t, int64(-1), StepOf("/x/model.ckpt-"))
	require.Equal(t, int64(-1), StepOf("/x/checkpoint"))
}

func TestCompressedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCompressed(&buf, snapshot(7)))
	snap, err := ReadCompressed(&buf)
	require.NoError(t, err)
	require.Equal(t, snapshot(7), snap)
}
