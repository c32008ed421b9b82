package distribution

import "math"

// noiseFloor is the fraction of a recurrence's summed term magnitudes below
// which a coefficient is indistinguishable from round-off.
const noiseFloor = 1e-12

// accumulator is a Neumaier compensated sum.
type accumulator struct {
	sum, comp float64
}

func (a *accumulator) add(x float64) {
	t := a.sum + x
	if math.Abs(a.sum) >= math.Abs(x) {
		a.comp += (a.sum - t) + x
	} else {
		a.comp += (x - t) + a.sum
	}
	a.sum = t
}

func (a *accumulator) value() float64 {
	return a.sum + a.comp
}

// ElementarySymmetric recovers e_0..e_order from power sums p_1..p_order
// using Newton's identities:
//
//	e_0 = 1
//	e_k = (1/k) * sum_{i=1..k} (-1)^(i-1) * e_(k-i) * p_i
//
// powerSums[0] is ignored; missing entries count as zero.
func ElementarySymmetric(powerSums []float64, order int) []float64 {
	e, _ := newtonIdentities(powerSums, order)
	return e
}

// newtonIdentities also returns, per order, the summed magnitude of the
// recurrence terms divided by k, the scale of the round-off in e_k.
func newtonIdentities(powerSums []float64, order int) (e, scale []float64) {
	e = make([]float64, order+1)
	scale = make([]float64, order+1)
	e[0] = 1
	scale[0] = 1

	for k := 1; k <= order; k++ {
		var acc accumulator
		magnitude := 0.0
		for i := 1; i <= k; i++ {
			term := e[k-i] * coefficient(powerSums, i)
			if i%2 == 0 {
				term = -term
			}
			acc.add(term)
			magnitude += math.Abs(term)
		}
		e[k] = acc.value() / float64(k)
		scale[k] = magnitude / float64(k)
	}

	return e, scale
}

// PowerSums computes power sums p_0..p_order of the roots encoded by
// elementary symmetric polynomials e_0..e_d (e_0 = 1), the inverse Newton
// identities:
//
//	p_k = sum_{i=1..k-1} (-1)^(i-1) * e_i * p_(k-i) + (-1)^(k-1) * k * e_k
//
// with e_i = 0 for i > d. p_0 is left as zero.
func PowerSums(elementary []float64, order int) []float64 {
	p := make([]float64, order+1)

	for k := 1; k <= order; k++ {
		var acc accumulator
		for i := 1; i < k; i++ {
			term := coefficient(elementary, i) * p[k-i]
			if i%2 == 0 {
				term = -term
			}
			acc.add(term)
		}
		last := float64(k) * coefficient(elementary, k)
		if k%2 == 0 {
			last = -last
		}
		acc.add(last)
		p[k] = acc.value()
	}

	return p
}

func coefficient(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}
