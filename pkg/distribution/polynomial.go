package distribution

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

// ElementPolynomial is the per-atom isotope generating polynomial of one
// element, P(x) = sum_k a_k x^k, where a_k is the abundance of the isotopes
// k mass units above the lightest isotope with non-zero abundance.
//
// It is stored normalized by a_0 so that P(x)/a_0 = prod_i (1 + s_i x). Its
// coefficients are then the elementary symmetric polynomials of the s_i and
// PowerSums holds sum_i s_i^k for k = 1..Order. The values are read-only
// and shared between calculations.
type ElementPolynomial struct {
	Symbol         string
	Order          int
	BaseMass       float64   // Mass of the offset-0 isotope
	BaseMassNumber int       // Mass number of the offset-0 isotope
	LogLead        float64   // log(a_0)
	Coefficients   []float64 // a_k / a_0; Coefficients[0] == 1
	MassWeights    []float64 // a_k * mass_k / a_0, the centroid numerators
	PowerSums      []float64 // PowerSums[0] unused
	AverageMass    float64
}

// NewElementPolynomial builds the normalized polynomial of el truncated to
// power sums of the given order.
func NewElementPolynomial(el *isotope.Element, order int) (*ElementPolynomial, error) {
	if order < 0 {
		return nil, fmt.Errorf("%w: order %d", ErrInvalidTruncation, order)
	}

	base := -1
	for i, iso := range el.Isotopes {
		if iso.Abundance > 0 {
			base = i
			break
		}
	}
	if base < 0 {
		return nil, fmt.Errorf("%w: element %s has no isotope with non-zero abundance", isotope.ErrInvalidTable, el.Symbol)
	}
	lead := el.Isotopes[base]

	var abundance, weighted []float64
	for _, iso := range el.Isotopes[base:] {
		if iso.Abundance == 0 {
			continue
		}
		k := iso.MassNumber - lead.MassNumber
		if k < 0 {
			return nil, fmt.Errorf("%w: element %s mass numbers are not ordered by mass", isotope.ErrInvalidTable, el.Symbol)
		}
		for len(abundance) <= k {
			abundance = append(abundance, 0)
			weighted = append(weighted, 0)
		}
		abundance[k] += iso.Abundance
		weighted[k] += iso.Abundance * iso.Mass
	}

	a0 := abundance[0]
	coefficients := make([]float64, len(abundance))
	massWeights := make([]float64, len(abundance))
	for k := range abundance {
		coefficients[k] = abundance[k] / a0
		massWeights[k] = weighted[k] / a0
	}
	coefficients[0] = 1

	return &ElementPolynomial{
		Symbol:         el.Symbol,
		Order:          order,
		BaseMass:       lead.Mass,
		BaseMassNumber: lead.MassNumber,
		LogLead:        math.Log(a0),
		Coefficients:   coefficients,
		MassWeights:    massWeights,
		PowerSums:      PowerSums(coefficients, order),
		AverageMass:    el.AverageMass(),
	}, nil
}

// MaxOffset returns the largest neutron offset one atom can contribute.
func (p *ElementPolynomial) MaxOffset() int {
	return len(p.Coefficients) - 1
}

// Aggregate is one element's contribution to a molecule: the element's
// polynomial raised to the atom count, kept in power-sum form. Cost does
// not depend on Count.
type Aggregate struct {
	Element     *ElementPolynomial
	Count       int
	PowerSums   []float64 // Count * p_k
	LogLead     float64   // Count * log(a_0)
	Probability float64   // Total probability of the aggregate, always 1
	MeanMass    float64   // Count * average element mass
}

// NewAggregate raises poly to count independent atoms.
func NewAggregate(poly *ElementPolynomial, count int) Aggregate {
	n := float64(count)
	sums := make([]float64, len(poly.PowerSums))
	for k := 1; k < len(sums); k++ {
		sums[k] = n * poly.PowerSums[k]
	}

	return Aggregate{
		Element:     poly,
		Count:       count,
		PowerSums:   sums,
		LogLead:     n * poly.LogLead,
		Probability: 1,
		MeanMass:    n * poly.AverageMass,
	}
}
