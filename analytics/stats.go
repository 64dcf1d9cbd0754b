package analytics

import "math"

// meanVariance tracks a running mean and variance over a stream of values using
// Welford's online algorithm, which stays numerically stable where the naive
// sum-of-squares approach loses precision.
type meanVariance struct {
	count int
	mean  float64
	m2    float64
}

func (v *meanVariance) update(x float64) {
	v.count++
	delta := x - v.mean
	v.mean += delta / float64(v.count)
	v.m2 += delta * (x - v.mean)
}

// variance returns the sample variance. Fewer than 2 values have no spread.
func (v *meanVariance) variance() float64 {
	if v.count < 2 {
		return 0
	}
	return v.m2 / float64(v.count-1)
}

func (v *meanVariance) stdDev() float64 {
	return math.Sqrt(v.variance())
}
