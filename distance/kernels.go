package distance

import "math"

// Func is a scalar kernel scoring one (target, query) vector pair.
// Kernels assume equal lengths; the Distance wrappers check dimensions.
type Func func(t, q []float32) float32

// SquaredL2 returns the squared Euclidean distance. Lower is more similar.
func SquaredL2(t, q []float32) float32 {
	var sum float32
	for i := range t {
		d := t[i] - q[i]
		sum += d * d
	}
	return sum
}

// Dot returns the inner product. Higher is more similar.
func Dot(t, q []float32) float32 {
	var sum float32
	for i := range t {
		sum += t[i] * q[i]
	}
	return sum
}

// Cosine returns the cosine similarity in [-1, 1]. Higher is more similar;
// a zero-magnitude vector scores 0 against everything.
func Cosine(t, q []float32) float32 {
	var dot, tt, qq float32
	for i := range t {
		dot += t[i] * q[i]
		tt += t[i] * t[i]
		qq += q[i] * q[i]
	}
	if tt == 0 || qq == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(tt))*math.Sqrt(float64(qq)))
}
