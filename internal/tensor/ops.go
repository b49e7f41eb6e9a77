package tensor

import (
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Dot computes the dot product of a and b. b must be at least as long as a.
func Dot(a, b []float32) float32 {
	var sum float32
	i := 0
	for ; i+3 < len(a); i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Clamp limits every element of x to [lo, hi] in place.
func Clamp(x []float32, lo, hi float32) {
	for i, v := range x {
		x[i] = min(max(v, lo), hi)
	}
}

// Softmax applies the softmax function to x.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// Normalize applies y = (x-mean)/sqrt(variance+eps)*scale + shift in place.
func Normalize(x []float32, mean, variance, eps, scale, shift float32) {
	inv := scale / float32(math.Sqrt(float64(variance+eps)))
	for i, v := range x {
		x[i] = (v-mean)*inv + shift
	}
}

// MeanVar returns the mean and biased variance of x.
func MeanVar(x []float32) (mean, variance float32) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	m := sum / float64(len(x))
	var sq float64
	for _, v := range x {
		d := float64(v) - m
		sq += d * d
	}
	return float32(m), float32(sq / float64(len(x)))
}
