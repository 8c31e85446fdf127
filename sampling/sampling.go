// Package sampling implements the probabilistic core of rank-approximate
// search: how many uniform samples from a population guarantee, with
// probability alpha, that at least one lands in the top tau fraction of the
// true ranking, and how to draw that many distinct samples.
package sampling

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"
)

// MinimumSamplesRequired returns the smallest sample count m such that
// drawing m points uniformly without replacement from a population of size n
// hits at least one of the top ceil(tau*n) ranked points with probability at
// least alpha. tau is a fraction in [0, 1].
//
// Degenerate parameters never fail; they collapse to exhaustive search:
// tau*n < 1, a cutoff covering all n points, alpha >= 1, k >= n and a rank
// cutoff below k all return n.
func MinimumSamplesRequired(n, k int, tau, alpha float64) int {
	if n <= 0 {
		return 0
	}

	t := int(math.Ceil(tau * float64(n)))
	if t < 1 || alpha >= 1 || k >= n {
		return n
	}

	// When every point ranks inside the cutoff a single sample would satisfy
	// the letter of the guarantee; the caller asked for the whole ranking, so
	// answer with exact search instead.
	if t >= n {
		return n
	}

	if k < 1 {
		k = 1
	}

	// Fewer top-t slots than requested neighbors cannot satisfy any alpha.
	if t < k {
		return n
	}

	// Binary search on the sample count. The bracket converges quickly; the
	// probability tolerance mirrors the precision of the tail sum.
	lb, ub := k, n
	m := lb

	for {
		prob := SuccessProbability(n, k, m, t)

		if prob > alpha {
			if prob-alpha < 1e-3 || ub < lb+2 {
				break
			}

			ub = m
		} else if prob < alpha {
			if m == lb {
				m++
				continue
			}

			lb = m
		} else {
			break
		}

		m = (ub + lb) / 2
	}

	if m+1 < n {
		return m + 1
	}

	return n
}

// SuccessProbability returns the probability that drawing m samples
// uniformly from a population of size n captures at least k of the top t
// ranked points. The binomial tail is the standard approximation of the
// exact hypergeometric tail and errs on the conservative side for the
// sample sizes involved.
func SuccessProbability(n, k, m, t int) float64 {
	eps := float64(t) / float64(n)

	if k == 1 {
		if m > n-t {
			return 1
		}

		return 1 - math.Pow(1-eps, float64(m))
	}

	if m < k {
		return 0
	}

	if m > n-t+k-1 {
		return 1
	}

	// P(X >= k) = sum_{j=k}^{m} C(m,j) eps^j (1-eps)^(m-j). Sum whichever of
	// the two complementary tails is shorter; terms are assembled in log
	// space to dodge overflow in the binomial coefficient.
	var (
		lo, hi  int
		topHalf bool
	)

	if 2*k < m {
		lo, hi = 0, k-1
		topHalf = true
	} else {
		lo, hi = k, m
	}

	logEps := math.Log(eps)
	log1mEps := math.Log1p(-eps)

	var sum float64
	for j := lo; j <= hi; j++ {
		logTerm := combin.LogGeneralizedBinomial(float64(m), float64(j)) +
			float64(j)*logEps + float64(m-j)*log1mEps
		sum += math.Exp(logTerm)
	}

	if topHalf {
		sum = 1 - sum
	}

	if sum < 0 {
		return 0
	}

	if sum > 1 {
		return 1
	}

	return sum
}
