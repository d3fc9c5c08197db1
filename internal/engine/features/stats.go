package features

import "math"

// SafeDivide returns a/b, or 0 when b is zero or not finite, or when the result is not finite.
func SafeDivide(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) || math.IsInf(b, 0) {
		return 0
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Stats summarizes a sample sequence.
type Stats struct {
	Max, Min, Mean, Std, Total float64
}

// calcStats ignores non-finite samples. Std is the population standard deviation and is zero
// for fewer than two samples.
func calcStats(values []float64) Stats {
	var (
		s     Stats
		n     int
		first = true
	)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if first {
			s.Max, s.Min = v, v
			first = false
		}
		if v > s.Max {
			s.Max = v
		}
		if v < s.Min {
			s.Min = v
		}
		s.Total += v
		n++
	}
	if n == 0 {
		return Stats{}
	}
	s.Mean = s.Total / float64(n)
	if n > 1 {
		var sq float64
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			d := v - s.Mean
			sq += d * d
		}
		s.Std = math.Sqrt(sq / float64(n))
	}
	return s
}

// scaled returns s with every field multiplied by k.
func (s Stats) scaled(k float64) Stats {
	return Stats{Max: s.Max * k, Min: s.Min * k, Mean: s.Mean * k, Std: s.Std * k, Total: s.Total * k}
}
