package trainer

import "context"

import "github.com/neurlang/rres/checkpoint"
import "github.com/neurlang/rres/datasets"
import "github.com/neurlang/rres/net"
import "github.com/neurlang/rres/summary"

// fakeModel steps a counter and predicts a fixed number of examples right.
type fakeModel struct {
	step    int64
	weight  float64
	batch   int
	correct int // per batch
	rates   []float64
	err     error
}

func (m *fakeModel) Build() error       { return nil }
func (m *fakeModel) NumParameters() int { return 1 }
func (m *fakeModel) GlobalStep() int64  { return m.step }

func (m *fakeModel) outputs() net.Outputs {
	out := net.Outputs{Loss: 1 / float64(m.step+1), GlobalStep: m.step}
	for i := 0; i < m.batch; i++ {
		out.Labels = append(out.Labels, datasets.OneHot(0, 2))
		if i < m.correct {
			out.Predictions = append(out.Predictions, []float32{0.9, 0.1})
		} else {
			out.Predictions = append(out.Predictions, []float32{0.1, 0.9})
		}
	}
	out.Summaries = summary.Scalar("cost", out.Loss)
	return out
}

func (m *fakeModel) Train(ctx context.Context, lr float64) (net.Outputs, error) {
	if m.err != nil {
		return net.Outputs{}, m.err
	}
	if err := ctx.Err(); err != nil {
		return net.Outputs{}, err
	}
	m.rates = append(m.rates, lr)
	m.step++
	m.weight += lr
	return m.outputs(), nil
}

func (m *fakeModel) Forward(ctx context.Context) (net.Outputs, error) {
	if m.err != nil {
		return net.Outputs{}, m.err
	}
	return m.outputs(), nil
}

func (m *fakeModel) Snapshot() checkpoint.Snapshot {
	return checkpoint.Snapshot{
		GlobalStep: m.step,
		Variables:  []checkpoint.Variable{{Name: "w", Shape: []int{1}, Values: []float64{m.weight}}},
	}
}

func (m *fakeModel) Restore(s checkpoint.Snapshot) error {
	if len(s.Variables) != 1 {
		return net.ErrShapeMismatch
	}
	m.step = s.GlobalStep
	m.weight = s.Variables[0].Values[0]
	return nil
}

// memWriter keeps summaries in memory.
type memWriter struct {
	events  []summary.Event
	flushes int
}

func (w *memWriter) Add(s summary.Summary, step int64) error {
	for _, v := range s {
		w.events = append(w.events, summary.Event{Step: step, Tag: v.Tag, Value: v.Value})
	}
	return nil
}

func (w *memWriter) Flush() error {
	w.flushes++
	return nil
}

func (w *memWriter) values(tag string) (out []float64) {
	for _, e := range w.events {
		if e.Tag == tag {
			out = append(out, e.Value)
		}
	}
	return out
}
