// Package datasets defines the input pipeline contract shared by training and evaluation.
package datasets

import "context"

// Batch is one step worth of examples. Labels are one-hot rows.
type Batch struct {
	Images [][]float32
	Labels [][]float32
}

// Len is the number of examples in the batch.
func (b Batch) Len() int {
	return len(b.Images)
}

// Pipeline is an endless supply of batches. It is the only source of input data.
type Pipeline interface {
	Next(ctx context.Context) (Batch, error)
}

// OneHot returns a row of n zeros with a one at class.
func OneHot(class, n int) []float32 {
	row := make([]float32, n)
	if class >= 0 && class < n {
		row[class] = 1
	}
	return row
}
