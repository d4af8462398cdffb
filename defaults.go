package scalecache

import "math"

var inf = math.Inf(1)

func isInf(v float64) bool { return math.IsInf(v, 1) }

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
