// package parallel contains bounded fan-out helpers used to spread batch work over the device threads.
package parallel

import "sync"

// ForEach executes body for every integer from 0 to length with at most limit
// goroutines running at once.
func ForEach(length, limit int, body func(i int)) {
	if limit <= 0 {
		limit = 1 // Default to 1 if limit is zero or negative
	}
	if length <= 0 {
		return // No iterations to perform
	}

	sem := make(chan struct{}, limit) // Semaphore with buffer size 'limit'
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{} // Acquire semaphore
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore after function exits

			body(i)
		}(i)
	}

	wg.Wait() // Wait for all goroutines to finish
}

// ForEachRange splits [0, length) into at most limit contiguous ranges and
// runs body once per range, concurrently. The part index n lets callers keep
// per-range accumulators without locking.
func ForEachRange(length, limit int, body func(n, from, to int)) {
	if length <= 0 {
		return
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > length {
		limit = length
	}
	step := (length + limit - 1) / limit
	parts := (length + step - 1) / step
	ForEach(parts, parts, func(n int) {
		from := n * step
		to := from + step
		if to > length {
			to = length
		}
		body(n, from, to)
	})
}

// Parts reports how many ranges ForEachRange will use.
func Parts(length, limit int) int {
	if length <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = 1
	}
	if limit > length {
		limit = length
	}
	step := (length + limit - 1) / limit
	return (length + step - 1) / step
}
