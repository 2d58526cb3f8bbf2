package cifar

import "bytes"
import "compress/gzip"
import "context"
import "os"
import "path/filepath"
import "testing"

import "github.com/neurlang/rres/config"
import "github.com/stretchr/testify/require"

const testImageSize = 2

// writeRecords writes one record per label; pixel values are filled with the label.
func writeRecords(t *testing.T, dir, name string, dataset config.Dataset, labels []byte) string {
	labelBytes, _, recordBytes := layout(dataset, testImageSize)
	var buf bytes.Buffer
	for i, l := range labels {
		rec := make([]byte, recordBytes)
		if labelBytes == 2 {
			rec[0] = l / 5
			rec[1] = l
		} else {
			rec[0] = l
		}
		for j := labelBytes; j < recordBytes; j++ {
			rec[j] = byte(i + j)
		}
		buf.Write(rec)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

func TestEvalOrderRepeats(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, "test_batch.bin", config.Cifar10, []byte{3, 1, 4})

	p, err := BuildInput(config.Cifar10, filepath.Join(dir, "*.bin"), 2, config.Eval, testImageSize, 1)
	require.NoError(t, err)
	require.Equal(t, 3, p.Len())

	var got []int
	for i := 0; i < 3; i++ {
		b, err := p.Next(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, b.Len())
		for _, l := range b.Labels {
			require.Len(t, l, 10)
			got = append(got, argmax(l))
		}
		require.Len(t, b.Images[0], testImageSize*testImageSize*depth)
	}
	require.Equal(t, []int{3, 1, 4, 3, 1, 4}, got)
}

func TestCifar100UsesFineLabel(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, "train.bin", config.Cifar100, []byte{42, 99})

	p, err := BuildInput(config.Cifar100, filepath.Join(dir, "train.bin"), 2, config.Eval, testImageSize, 1)
	require.NoError(t, err)
	b, err := p.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Labels[0], 100)
	require.Equal(t, 42, argmax(b.Labels[0]))
	require.Equal(t, 99, argmax(b.Labels[1]))
}

func TestTrainShuffleKeepsEveryRecordPerEpoch(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, "data_batch_1.bin", config.Cifar10, []byte{0, 1, 2, 3, 4, 5, 6, 7})

	p, err := BuildInput(config.Cifar10, filepath.Join(dir, "data_batch_*"), 8, config.Train, testImageSize, 7)
	require.NoError(t, err)
	b, err := p.Next(context.Background())
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, l := range b.Labels {
		seen[argmax(l)] = true
	}
	require.Len(t, seen, 8)
}

func TestGzipInput(t *testing.T) {
	dir := t.TempDir()
	raw := writeRecords(t, dir, "plain.bin", config.Cifar10, []byte{9})
	data, err := os.ReadFile(raw)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "packed.bin.gz"), buf.Bytes(), 0o644))

	p, err := BuildInput(config.Cifar10, filepath.Join(dir, "*.gz"), 1, config.Eval, testImageSize, 1)
	require.NoError(t, err)
	b, err := p.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, argmax(b.Labels[0]))
}

func TestBuildInputErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := BuildInput(config.Cifar10, filepath.Join(dir, "*.bin"), 1, config.Train, testImageSize, 1)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "short.bin"), []byte{1, 2, 3}, 0o644))
	_, err = BuildInput(config.Cifar10, filepath.Join(dir, "*.bin"), 1, config.Train, testImageSize, 1)
	require.Error(t, err)
}

func TestNextHonoursContext(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, dir, "a.bin", config.Cifar10, []byte{1})
	p, err := BuildInput(config.Cifar10, filepath.Join(dir, "a.bin"), 1, config.Eval, testImageSize, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStandardize(t *testing.T) {
	out := standardize([]byte{0, 0, 0, 0, 255, 255, 255, 255, 0, 0, 0, 0})
	var sum float32
	for _, v := range out {
		sum += v
	}
	require.InDelta(t, 0, sum, 1e-4)
	// channel major in, channel last out
	require.Greater(t, out[1], out[0])
}
