package trainer

// Schedule is the piecewise constant learning rate at a global step.
func Schedule(base float64, step int64) float64 {
	switch {
	case step < 40000:
		return base
	case step < 60000:
		return base / 10
	case step < 80000:
		return base / 100
	default:
		return base / 1000
	}
}
