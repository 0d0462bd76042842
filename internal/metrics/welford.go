package metrics

import "math"

// Welford keeps a running mean and variance in O(1) space.
// See https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
type Welford struct {
	count int
	mean  float64
	m2    float64 // sum of squared differences from the mean
}

// RestoreWelford rebuilds running state from a saved mean/stddev pair
func RestoreWelford(mean, stddev float64, count int) Welford {
	if count <= 0 {
		return Welford{}
	}
	return Welford{count: count, mean: mean, m2: stddev * stddev * float64(count)}
}

// Add records one observation
func (w *Welford) Add(v float64) {
	w.count++
	delta := v - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (v - w.mean)
}

func (w Welford) Count() int    { return w.count }
func (w Welford) Mean() float64 { return w.mean }

// StdDev is the population standard deviation, 0 below two observations
func (w Welford) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}
