package projection

import "math"

// IrwinHallCDF is the CDF of the sum of n independent Uniform(0,1)
// variables evaluated at x. It is 0 below the support, 1 above it, and
// defined for every input.
func IrwinHallCDF(n int, x float64) float64 {
	if n <= 0 {
		if x < 0 {
			return 0
		}
		return 1
	}
	if x < 0 {
		return 0
	}
	if x > float64(n) {
		return 1
	}

	var sum float64
	binom := 1.0
	for k := 0; k <= n; k++ {
		d := x - float64(k)
		term := binom * sign(d) * math.Pow(d, float64(n))
		if k%2 == 1 {
			term = -term
		}
		sum += term
		binom = binom * float64(n-k) / float64(k+1)
	}
	f := 0.5 + sum/(2*factorial(n))
	return math.Min(1, math.Max(0, f))
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}
