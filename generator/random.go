package generator

import "math"

// Source is a seedable sequence of values in [0,1).
//
// Each draw takes the fractional part of sin(counter)*10000 and then advances
// the counter, so the same seed always yields the same sequence. It exists for
// reproducible demo data only and must never be used where unpredictability
// matters.
type Source struct {
	counter int64
}

// NewSource creates a source whose counter starts at seed
func NewSource(seed int64) *Source {
	return &Source{counter: seed}
}

// Float64 returns the next value in [0,1)
func (s *Source) Float64() float64 {
	x := math.Sin(float64(s.counter)) * 10000
	s.counter++
	f := x - math.Floor(x)
	// floating rounding can land exactly on 1 for tiny negative x
	if f >= 1 {
		return 0
	}
	return f
}

// Range returns a value uniformly spread over [min, max) from one draw
func (s *Source) Range(min, max float64) float64 {
	return min + s.Float64()*(max-min)
}

// Intn returns an integer in [0, n) from one draw. n <= 0 yields 0 without drawing.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Floor(s.Float64() * float64(n)))
}

// Pick returns a uniformly drawn element of pool
func Pick[T any](s *Source, pool []T) T {
	return pool[s.Intn(len(pool))]
}
