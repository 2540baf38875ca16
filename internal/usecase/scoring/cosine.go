package scoring

import "math"

// Cosine returns the cosine similarity of a and b, accumulated in float64.
// It returns 0 for empty, zero-norm or mismatched-length vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Rounding can push c(v, v) a hair past 1.
	if c > 1 {
		return 1
	}
	if c < -1 {
		return -1
	}
	return c
}
