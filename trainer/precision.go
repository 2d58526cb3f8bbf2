package trainer

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// CountCorrect compares the argmax of every prediction with the argmax of its
// label and returns the number of matches and the number of examples.
func CountCorrect(predictions, labels [][]float32) (correct, total int) {
	for i := range predictions {
		if Argmax(predictions[i]) == Argmax(labels[i]) {
			correct++
		}
		total++
	}
	return correct, total
}

// Precision is the fraction of examples predicted correctly.
func Precision(predictions, labels [][]float32) float64 {
	correct, total := CountCorrect(predictions, labels)
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
