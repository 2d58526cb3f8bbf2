// Package softmax implements a linear softmax classifier behind the net.Model contract.
//
// It is the built-in engine of the driver: one fully connected layer from the
// standardised pixels to the class logits, trained with momentum and L2 weight
// decay. Batch work is spread over the device threads.
package softmax

import "context"
import "fmt"
import "math"
import "math/rand"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/config"
import "github.com/neurlang/rres/datasets"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/parallel"
import "github.com/neurlang/rres/summary"
import "github.com/pkg/errors"

const momentum = 0.9

const (
	weightsName  = "logit/DW"
	biasesName   = "logit/biases"
	momentumName = "/Momentum"
)

var _ net.Model = (*Model)(nil)

// Model is the linear softmax classifier.
type Model struct {
	hps      config.HyperParameters
	input    datasets.Pipeline
	mode     config.Mode
	threads  int
	features int

	weights []float64 // features x classes, row major
	biases  []float64
	vw, vb  []float64 // momentum accumulators
	step    int64
	built   bool
}

// New wires a model to its input pipeline. threads bounds the batch fan-out.
func New(hps config.HyperParameters, input datasets.Pipeline, mode config.Mode, threads int) *Model {
	if threads < 1 {
		threads = 1
	}
	return &Model{
		hps:      hps,
		input:    input,
		mode:     mode,
		threads:  threads,
		features: hps.ImageSize * hps.ImageSize * 3,
	}
}

// Build initialises the weights uniformly with unit scaling and zero biases.
func (m *Model) Build() error {
	if m.features < 1 || m.hps.NumClasses < 1 {
		return errors.Errorf("cannot build model with %d features and %d classes", m.features, m.hps.NumClasses)
	}
	classes := m.hps.NumClasses
	rng := rand.New(rand.NewSource(m.hps.Seed))
	limit := math.Sqrt(3 / float64(m.features))

	m.weights = make([]float64, m.features*classes)
	for i := range m.weights {
		m.weights[i] = (2*rng.Float64() - 1) * limit
	}
	m.biases = make([]float64, classes)
	m.vw = make([]float64, len(m.weights))
	m.vb = make([]float64, classes)
	m.step = 0
	m.built = true
	return nil
}

// NumParameters counts weights and biases.
func (m *Model) NumParameters() int {
	return len(m.weights) + len(m.biases)
}

// GlobalStep is the number of applied optimizer steps.
func (m *Model) GlobalStep() int64 {
	return m.step
}

// Forward evaluates the next batch.
func (m *Model) Forward(ctx context.Context) (net.Outputs, error) {
	if !m.built {
		return net.Outputs{}, net.ErrNotBuilt
	}
	b, err := m.next(ctx)
	if err != nil {
		return net.Outputs{}, err
	}
	probs, loss := m.forward(b)
	return net.Outputs{
		Loss:        loss,
		Predictions: probs,
		Labels:      b.Labels,
		GlobalStep:  m.step,
		Summaries:   summary.Scalar("cost", loss),
	}, nil
}

// Train applies one optimizer step on the next batch.
func (m *Model) Train(ctx context.Context, learningRate float64) (net.Outputs, error) {
	if m.mode != config.Train {
		return net.Outputs{}, net.ErrNoTrainOp
	}
	if !m.built {
		return net.Outputs{}, net.ErrNotBuilt
	}
	b, err := m.next(ctx)
	if err != nil {
		return net.Outputs{}, err
	}
	probs, loss := m.forward(b)
	m.backward(b, probs, learningRate)
	m.step++
	return net.Outputs{
		Loss:        loss,
		Predictions: probs,
		Labels:      b.Labels,
		GlobalStep:  m.step,
		Summaries:   summary.Merge(summary.Scalar("learning_rate", learningRate), summary.Scalar("cost", loss)),
	}, nil
}

func (m *Model) next(ctx context.Context) (datasets.Batch, error) {
	b, err := m.input.Next(ctx)
	if err != nil {
		return datasets.Batch{}, errors.Wrap(err, "input")
	}
	if b.Len() == 0 {
		return datasets.Batch{}, errors.New("input: empty batch")
	}
	for i := range b.Images {
		if len(b.Images[i]) != m.features || len(b.Labels[i]) != m.hps.NumClasses {
			return datasets.Batch{}, errors.Wrapf(net.ErrShapeMismatch,
				"example %d has %d features and %d labels, model wants %d and %d",
				i, len(b.Images[i]), len(b.Labels[i]), m.features, m.hps.NumClasses)
		}
	}
	return b, nil
}

// forward returns the class distribution of every example and the mean cross
// entropy plus the weight decay term.
func (m *Model) forward(b datasets.Batch) ([][]float32, float64) {
	classes := m.hps.NumClasses
	n := b.Len()
	probs := make([][]float32, n)
	losses := make([]float64, parallel.Parts(n, m.threads))

	parallel.ForEachRange(n, m.threads, func(part, from, to int) {
		logits := make([]float64, classes)
		for i := from; i < to; i++ {
			x := b.Images[i]
			copy(logits, m.biases)
			for f, v := range x {
				if v == 0 {
					continue
				}
				row := m.weights[f*classes : (f+1)*classes]
				for c := range logits {
					logits[c] += float64(v) * row[c]
				}
			}
			top := logits[0]
			for _, l := range logits[1:] {
				if l > top {
					top = l
				}
			}
			var sum float64
			for _, l := range logits {
				sum += math.Exp(l - top)
			}
			lse := top + math.Log(sum)
			p := make([]float32, classes)
			for c, l := range logits {
				p[c] = float32(math.Exp(l - lse))
				if y := b.Labels[i][c]; y != 0 {
					losses[part] -= float64(y) * (l - lse)
				}
			}
			probs[i] = p
		}
	})

	var loss float64
	for _, l := range losses {
		loss += l
	}
	loss /= float64(n)
	return probs, loss + m.hps.WeightDecayRate*l2(m.weights)
}

// backward computes the gradients of the loss and applies the optimizer.
func (m *Model) backward(b datasets.Batch, probs [][]float32, lr float64) {
	classes := m.hps.NumClasses
	n := b.Len()
	scale := 1 / float64(n)

	delta := make([][]float64, n)
	for i := range delta {
		d := make([]float64, classes)
		for c := range d {
			d[c] = (float64(probs[i][c]) - float64(b.Labels[i][c])) * scale
		}
		delta[i] = d
	}

	parallel.ForEachRange(m.features, m.threads, func(_, from, to int) {
		grad := make([]float64, classes)
		for f := from; f < to; f++ {
			row := m.weights[f*classes : (f+1)*classes]
			for c := range grad {
				grad[c] = m.hps.WeightDecayRate * row[c]
			}
			for i := 0; i < n; i++ {
				v := float64(b.Images[i][f])
				if v == 0 {
					continue
				}
				for c, d := range delta[i] {
					grad[c] += v * d
				}
			}
			m.apply(row, m.vw[f*classes:(f+1)*classes], grad, lr)
		}
	})

	grad := make([]float64, classes)
	for i := range delta {
		for c, d := range delta[i] {
			grad[c] += d
		}
	}
	m.apply(m.biases, m.vb, grad, lr)
}

func (m *Model) apply(param, velocity, grad []float64, lr float64) {
	if m.hps.Optimizer == config.SGD {
		for i, g := range grad {
			param[i] -= lr * g
		}
		return
	}
	for i, g := range grad {
		velocity[i] = momentum*velocity[i] + g
		param[i] -= lr * velocity[i]
	}
}

func l2(w []float64) (o float64) {
	for _, v := range w {
		o += v * v
	}
	return o / 2
}

// Snapshot copies the parameters and the momentum accumulators.
func (m *Model) Snapshot() checkpoint.Snapshot {
	classes := m.hps.NumClasses
	variable := func(name string, values []float64, shape ...int) checkpoint.Variable {
		return checkpoint.Variable{Name: name, Shape: shape, Values: append([]float64(nil), values...)}
	}
	return checkpoint.Snapshot{
		GlobalStep: m.step,
		Variables: []checkpoint.Variable{
			variable(weightsName, m.weights, m.features, classes),
			variable(biasesName, m.biases, classes),
			variable(weightsName+momentumName, m.vw, m.features, classes),
			variable(biasesName+momentumName, m.vb, classes),
		},
	}
}

// Restore loads a snapshot taken from a model of the same shape.
func (m *Model) Restore(s checkpoint.Snapshot) error {
	if !m.built {
		return net.ErrNotBuilt
	}
	targets := map[string][]float64{
		weightsName:                m.weights,
		biasesName:                 m.biases,
		weightsName + momentumName: m.vw,
		biasesName + momentumName:  m.vb,
	}
	found := 0
	for _, v := range s.Variables {
		dst, ok := targets[v.Name]
		if !ok {
			return errors.Wrapf(net.ErrShapeMismatch, "unknown variable %s", v.Name)
		}
		if len(v.Values) != len(dst) || product(v.Shape) != len(dst) {
			return errors.Wrapf(net.ErrShapeMismatch, "variable %s has shape %v, want %d values", v.Name, v.Shape, len(dst))
		}
		found++
	}
	if found != len(targets) {
		return errors.Wrap(net.ErrShapeMismatch, fmt.Sprintf("checkpoint has %d of %d variables", found, len(targets)))
	}
	for _, v := range s.Variables {
		copy(targets[v.Name], v.Values)
	}
	m.step = s.GlobalStep
	return nil
}

func product(shape []int) int {
	p := 1
	for _, d := range shape {
		p *= d
	}
	return p
}
