// Package cifar implements the CIFAR-10 and CIFAR-100 binary record input pipeline
package cifar

import "bytes"
import "compress/gzip"
import "context"
import "io"
import "math"
import "math/rand"
import "os"
import "path/filepath"
import "sort"
import "strings"
import "sync"

import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/datasets"
import "github.com/pkg/errors"

const depth = 3

var _ datasets.Pipeline = (*Pipeline)(nil)

// layout of one binary record
func layout(dataset config.Dataset, imageSize int) (labelBytes, labelOffset, recordBytes int) {
	labelBytes, labelOffset = 1, 0
	if dataset == config.Cifar100 {
		// coarse label then fine label, the fine label is the class
		labelBytes, labelOffset = 2, 1
	}
	return labelBytes, labelOffset, labelBytes + imageSize*imageSize*depth
}

type example struct {
	image []float32
	label int
}

// Pipeline serves batches from the records in memory, repeating forever.
// In train mode the order is reshuffled every epoch, in eval mode it is the
// file order.
type Pipeline struct {
	mut        sync.Mutex
	examples   []example
	order      []int
	pos        int
	batchSize  int
	numClasses int
	shuffle    bool
	rng        *rand.Rand
}

// BuildInput loads every record file matching dataPath. Files ending in .gz are
// decompressed. It fails when nothing matches or a file is not a whole number
// of records.
func BuildInput(dataset config.Dataset, dataPath string, batchSize int, mode config.Mode, imageSize int, seed int64) (*Pipeline, error) {
	var numClasses int
	switch dataset {
	case config.Cifar10:
		numClasses = 10
	case config.Cifar100:
		numClasses = 100
	default:
		return nil, errors.Errorf("not supported dataset %q", dataset)
	}
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}

	files, err := filepath.Glob(dataPath)
	if err != nil {
		return nil, errors.Wrapf(err, "bad data path %s", dataPath)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no input files match %s", dataPath)
	}
	sort.Strings(files)

	p := &Pipeline{
		batchSize:  batchSize,
		numClasses: numClasses,
		shuffle:    mode == config.Train,
		rng:        rand.New(rand.NewSource(seed)),
	}
	for _, name := range files {
		data, err := readFile(name)
		if err != nil {
			return nil, err
		}
		examples, err := decode(data, dataset, imageSize, numClasses)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", name)
		}
		p.examples = append(p.examples, examples...)
	}
	if len(p.examples) == 0 {
		return nil, errors.Errorf("no records in %s", dataPath)
	}
	p.order = make([]int, len(p.examples))
	for i := range p.order {
		p.order[i] = i
	}
	p.newEpoch()
	return p, nil
}

func readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(name, ".gz") {
		gzipReader, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gzip %s", name)
		}
		defer gzipReader.Close()
		r = gzipReader
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, dataset config.Dataset, imageSize, numClasses int) ([]example, error) {
	labelBytes, labelOffset, recordBytes := layout(dataset, imageSize)
	if len(data)%recordBytes != 0 {
		return nil, errors.Errorf("size %d is not a multiple of the %d byte record", len(data), recordBytes)
	}
	var out = make([]example, 0, len(data)/recordBytes)
	for ptr := 0; ptr < len(data); ptr += recordBytes {
		label := int(data[ptr+labelOffset])
		if label >= numClasses {
			return nil, errors.Errorf("record %d: label %d out of range", ptr/recordBytes, label)
		}
		out = append(out, example{
			image: standardize(data[ptr+labelBytes : ptr+recordBytes]),
			label: label,
		})
	}
	return out, nil
}

// standardize scales the pixels to zero mean and unit variance. The stored
// planes are channel major, the result is height, width, channel.
func standardize(pixels []byte) []float32 {
	n := len(pixels)
	plane := n / depth
	var sum, sq float64
	for _, v := range pixels {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	mean := sum / float64(n)
	std := math.Sqrt(sq/float64(n) - mean*mean)
	if floor := 1 / math.Sqrt(float64(n)); std < floor {
		std = floor
	}
	out := make([]float32, n)
	for c := 0; c < depth; c++ {
		for i := 0; i < plane; i++ {
			out[i*depth+c] = float32((float64(pixels[c*plane+i]) - mean) / std)
		}
	}
	return out
}

func (p *Pipeline) newEpoch() {
	p.pos = 0
	if p.shuffle {
		p.rng.Shuffle(len(p.order), func(i, j int) { p.order[i], p.order[j] = p.order[j], p.order[i] })
	}
}

// Len is the number of records loaded.
func (p *Pipeline) Len() int {
	return len(p.examples)
}

// Next returns the next batch of exactly batchSize examples.
func (p *Pipeline) Next(ctx context.Context) (datasets.Batch, error) {
	if err := ctx.Err(); err != nil {
		return datasets.Batch{}, err
	}
	p.mut.Lock()
	defer p.mut.Unlock()

	b := datasets.Batch{
		Images: make([][]float32, p.batchSize),
		Labels: make([][]float32, p.batchSize),
	}
	for i := 0; i < p.batchSize; i++ {
		if p.pos == len(p.order) {
			p.newEpoch()
		}
		e := p.examples[p.order[p.pos]]
		p.pos++
		b.Images[i] = e.image
		b.Labels[i] = datasets.OneHot(e.label, p.numClasses)
	}
	return b, nil
}
