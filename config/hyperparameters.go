package config

// Optimizer names the update rule used by the training step.
type Optimizer string

const (
	Momentum Optimizer = "mom"
	SGD      Optimizer = "sgd"
)

// HyperParameters are derived once from RunConfig and passed by value into
// model construction.
type HyperParameters struct {
	BatchSize        int     // examples per step, fixed per mode
	NumClasses       int     // fixed per dataset
	LearningRate     float64 // base learning rate before the schedule decays it
	NumResidualUnits int     // residual units per stage
	UseBottleneck    bool    // bottleneck residual units
	WeightDecayRate  float64 // L2 penalty on the weights
	ReluLeakiness    float64 // slope of the leaky relu for negative inputs
	Optimizer        Optimizer
	ImageSize        int   // image side length
	Seed             int64 // parameter initialisation
}

const (
	trainBatchSize = 128
	evalBatchSize  = 100
)

// Resolve derives the hyperparameters of a run. Batch size depends only on
// the mode and the class count only on the dataset; neither is configurable.
func Resolve(c RunConfig) (HyperParameters, error) {
	if err := c.Validate(); err != nil {
		return HyperParameters{}, err
	}

	var h HyperParameters

	switch c.Mode {
	case Train:
		h.BatchSize = trainBatchSize
	case Eval:
		h.BatchSize = evalBatchSize
	}

	switch c.Dataset {
	case Cifar10:
		h.NumClasses = 10
	case Cifar100:
		h.NumClasses = 100
	}

	h.LearningRate = c.LearningRate
	h.NumResidualUnits = 5
	h.UseBottleneck = false
	h.WeightDecayRate = c.WeightDecayRate
	h.ReluLeakiness = 0.1
	h.Optimizer = Momentum
	h.ImageSize = c.ImageSize
	h.Seed = c.Seed

	return h, nil
}
