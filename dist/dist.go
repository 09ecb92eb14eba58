// Package dist implements functions for discrete distributions.
package dist

import (
	"math"

	"github.com/gonum/mathext"
)

// IncompleteGamma returns the regularized incomplete gamma ratio
// I(x, alpha), i.e. the CDF of a gamma distribution with shape alpha
// and rate 1.
func IncompleteGamma(x, alpha float64) float64 {
	return mathext.GammaInc(alpha, x)
}

// QuantileGamma returns z so that Prob{x<z}=prob where x is gamma
// distributed with given shape alpha and rate beta. The quantile is
// found by bisection on the regularized incomplete gamma function.
func QuantileGamma(prob, alpha, beta float64) float64 {
	if prob <= 0 {
		return 0
	}
	if prob >= 1 {
		return math.Inf(+1)
	}
	// bracket the quantile of the rate-1 distribution
	hi := alpha + 1
	for IncompleteGamma(hi, alpha) < prob {
		hi *= 2
	}
	lo := 0.0
	for i := 0; i < 200 && hi-lo > 1e-12*(1+hi); i++ {
		mid := (lo + hi) / 2
		if IncompleteGamma(mid, alpha) < prob {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2 / beta
}

// DiscreteGamma discretizes G(alpha, beta) into K categories with equal
// proportions, returning the mean rate of every category (Yang 1994).
// The result is rescaled so that the mean is exactly alpha/beta.
func DiscreteGamma(alpha, beta float64, K int, res []float64) []float64 {
	if res == nil {
		res = make([]float64, K)
	}
	if K == 1 {
		res[0] = alpha / beta
		return res
	}
	mean := alpha / beta

	// cutting points between categories
	cut := make([]float64, K-1)
	for i := 0; i < K-1; i++ {
		cut[i] = QuantileGamma((float64(i)+1)/float64(K), alpha, beta)
	}
	// mean of each category through the incomplete gamma of shape
	// alpha+1
	for i := 0; i < K-1; i++ {
		cut[i] = IncompleteGamma(cut[i]*beta, alpha+1)
	}
	res[0] = cut[0] * mean * float64(K)
	for i := 1; i < K-1; i++ {
		res[i] = (cut[i] - cut[i-1]) * mean * float64(K)
	}
	res[K-1] = (1 - cut[K-2]) * mean * float64(K)

	return res
}
