package distribution

import (
	"fmt"
	"math"
)

// Level is one neutron-substitution level of a combined distribution.
type Level struct {
	Offset      int
	Probability float64
	Mass        float64 // Centroid mass; NaN when the level is unreachable
}

// Combiner merges element aggregates into the molecule's distribution.
//
// The molecule polynomial is the product of the element polynomials, so its
// root multiset is the union of theirs and its power sums add across
// elements: Psi_k = sum_e n_e * p_(e,k).
type Combiner struct {
	order     int
	parts     []Aggregate
	powerSums []float64
	logLead   float64
	meanMass  float64
}

// NewCombiner creates a combiner for levels 0..order.
func NewCombiner(order int) *Combiner {
	return &Combiner{
		order:     order,
		powerSums: make([]float64, order+1),
	}
}

// Add folds an element aggregate into the molecule.
func (c *Combiner) Add(a Aggregate) error {
	if len(a.PowerSums) != c.order+1 {
		return fmt.Errorf("aggregate for %s has order %d, combiner expects %d", a.Element.Symbol, len(a.PowerSums)-1, c.order)
	}
	if a.Count == 0 {
		return nil
	}

	for k := 1; k <= c.order; k++ {
		c.powerSums[k] += a.PowerSums[k]
	}
	c.logLead += a.LogLead
	c.meanMass += a.MeanMass
	c.parts = append(c.parts, a)
	return nil
}

// PowerSums returns the molecule's power sums; index 0 is unused.
func (c *Combiner) PowerSums() []float64 {
	out := make([]float64, len(c.powerSums))
	copy(out, c.powerSums)
	return out
}

// AverageMass returns the molecule's abundance-weighted mean mass.
func (c *Combiner) AverageMass() float64 {
	return c.meanMass
}

// Levels recovers probabilities and centroid masses for levels 0..order.
//
// Probabilities are q_k = prod_e a_(e,0)^(n_e) * E_k, where E_k are the
// elementary symmetric polynomials recovered from the combined power sums.
// Coefficients within round-off of zero are reported as exactly zero.
//
// The centroid of level k is sum_e n_e * [x^k](B_e(x) * R_e(x)) / E_k,
// where B_e holds the element's mass-weighted coefficients and R_e is the
// normalized molecule polynomial with one atom of e removed.
func (c *Combiner) Levels() []Level {
	e, scale := newtonIdentities(c.powerSums, c.order)

	levels := make([]Level, c.order+1)
	for k := range levels {
		levels[k] = Level{Offset: k, Mass: math.NaN()}
		if k > 0 && math.Abs(e[k]) <= noiseFloor*scale[k] {
			e[k] = 0
			continue
		}
		levels[k].Probability = scaleByLead(e[k], c.logLead)
	}

	numerators := make([]accumulator, c.order+1)
	reduced := make([]float64, c.order+1)
	for _, part := range c.parts {
		for k := 1; k <= c.order; k++ {
			reduced[k] = c.powerSums[k] - part.Element.PowerSums[k]
		}
		r := ElementarySymmetric(reduced, c.order)

		n := float64(part.Count)
		weights := part.Element.MassWeights
		for k := 0; k <= c.order; k++ {
			for j := 0; j <= k && j < len(weights); j++ {
				numerators[k].add(n * weights[j] * r[k-j])
			}
		}
	}

	for k := range levels {
		if e[k] != 0 {
			levels[k].Mass = numerators[k].value() / e[k]
		}
	}

	return levels
}

// scaleByLead returns exp(logLead) * v without underflowing the lead
// factor on its own.
func scaleByLead(v, logLead float64) float64 {
	if v == 0 {
		return 0
	}
	mag := math.Exp(logLead + math.Log(math.Abs(v)))
	if v < 0 {
		return -mag
	}
	return mag
}
