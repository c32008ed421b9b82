// Package distribution computes theoretical isotopic distributions from
// elemental compositions.
//
// Each element's isotope abundances form a generating polynomial. The
// molecule's distribution is the product of those polynomials raised to the
// atom counts. Rather than convolving, the calculator keeps each element in
// power-sum form, adds power sums across elements, and recovers the first K
// coefficients with Newton's identities. Cost is O(elements * K^2) and does
// not depend on atom counts.
//
// For compositions whose elements' lightest isotope is also abundant (C, H,
// N, O, S, Cl, Br) results agree with direct convolution to about 1e-9 of the
// base peak up to K = 40. Elements whose lightest isotope is rare (Fe, Se)
// amplify rounding at high order: near K = 30 expect errors around 1e-5 of
// the base peak and a few mDa in the heaviest centroids, so keep K <= 20 for
// those when centroids matter.
package distribution

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

const (
	// DefaultTolerance bounds clamped negative probabilities and the
	// allowed excess of the probability sum over 1.
	DefaultTolerance = 1e-8
	// DefaultCacheSize is the number of element polynomials a calculator keeps.
	DefaultCacheSize = 256
)

// Normalization selects how peak intensities are scaled.
type Normalization string

const (
	NormalizeNone Normalization = "none" // Absolute probabilities
	NormalizeMax  Normalization = "max"  // Base peak is 1
	NormalizeSum  Normalization = "sum"  // Returned peaks sum to 1
)

// ParseNormalization converts a flag value to a Normalization.
func ParseNormalization(s string) (Normalization, error) {
	switch n := Normalization(strings.ToLower(strings.TrimSpace(s))); n {
	case "", NormalizeNone:
		return NormalizeNone, nil
	case NormalizeMax, NormalizeSum:
		return n, nil
	}
	return "", fmt.Errorf("invalid normalization '%s', must be none, max, or sum", s)
}

// Config holds optional settings for a variants calculation. The zero
// value reports neutral masses and absolute probabilities.
type Config struct {
	Charge        int            // 0 reports neutral masses
	ChargeCarrier float64        // Mass of the charge carrier; 0 means proton
	Normalize     Normalization  // "" means none
	Tolerance     float64        // 0 means DefaultTolerance
	Table         *isotope.Table // Overrides the table in IsotopicVariants; ignored by Calculator.Variants
}

func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.ChargeCarrier == 0 {
		out.ChargeCarrier = core.ProtonMass
	}
	if out.Normalize == "" {
		out.Normalize = NormalizeNone
	}
	if out.Tolerance <= 0 {
		out.Tolerance = DefaultTolerance
	}
	return out
}

type polynomialKey struct {
	symbol string
	order  int
}

// Calculator computes isotopic variants against one isotope table. It is
// safe for concurrent use.
type Calculator struct {
	table *isotope.Table
	cache *lru.Cache[polynomialKey, *ElementPolynomial]
}

// NewCalculator creates a calculator caching up to cacheSize element
// polynomials. A non-positive cacheSize uses DefaultCacheSize.
func NewCalculator(table *isotope.Table, cacheSize int) (*Calculator, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", isotope.ErrInvalidTable)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[polynomialKey, *ElementPolynomial](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create polynomial cache: %w", err)
	}
	return &Calculator{table: table, cache: cache}, nil
}

var (
	defaultOnce sync.Once
	defaultCalc *Calculator
)

// Default returns the shared calculator over isotope.Default().
func Default() *Calculator {
	defaultOnce.Do(func() {
		calc, err := NewCalculator(isotope.Default(), DefaultCacheSize)
		if err != nil {
			panic("distribution: " + err.Error())
		}
		defaultCalc = calc
	})
	return defaultCalc
}

// IsotopicVariants computes the first npeaks isotopic peaks of comp. It uses
// cfg.Table when set and the built-in table otherwise.
func IsotopicVariants(comp core.Composition, npeaks int, cfg *Config) ([]core.Peak, error) {
	calc := Default()
	if cfg != nil && cfg.Table != nil && cfg.Table != calc.Table() {
		var err error
		calc, err = NewCalculator(cfg.Table, DefaultCacheSize)
		if err != nil {
			return nil, err
		}
	}
	return calc.Variants(comp, npeaks, cfg)
}

// Table returns the calculator's isotope table.
func (c *Calculator) Table() *isotope.Table {
	return c.table
}

// Polynomial returns the cached polynomial of symbol for the given order.
func (c *Calculator) Polynomial(symbol string, order int) (*ElementPolynomial, error) {
	key := polynomialKey{symbol: symbol, order: order}
	if poly, ok := c.cache.Get(key); ok {
		return poly, nil
	}

	el, err := c.table.Element(symbol)
	if err != nil {
		return nil, err
	}
	poly, err := NewElementPolynomial(el, order)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, poly)
	return poly, nil
}

// Combine resolves every element of comp and folds them into a combiner
// for levels 0..order. Unknown elements fail before any aggregation.
func (c *Calculator) Combine(comp core.Composition, order int) (*Combiner, error) {
	if err := comp.Validate(); err != nil {
		return nil, err
	}
	if comp.TotalAtoms() == 0 {
		return nil, ErrEmptyComposition
	}

	symbols := comp.Symbols()
	// Deterministic accumulation order
	sort.Strings(symbols)

	for _, s := range symbols {
		if !c.table.Has(s) {
			return nil, &isotope.UnknownElementError{Symbol: s}
		}
	}

	polys := make([]*ElementPolynomial, len(symbols))
	for i, s := range symbols {
		poly, err := c.Polynomial(s, order)
		if err != nil {
			return nil, err
		}
		polys[i] = poly
	}

	combiner := NewCombiner(order)
	for i, s := range symbols {
		if err := combiner.Add(NewAggregate(polys[i], comp[s])); err != nil {
			return nil, err
		}
	}
	return combiner, nil
}

// Variants computes exactly npeaks isotopic peaks of comp in ascending
// neutron-offset order. Levels beyond the reachable ones are emitted with
// zero intensity one neutron shift apart.
func (c *Calculator) Variants(comp core.Composition, npeaks int, cfg *Config) ([]core.Peak, error) {
	if npeaks <= 0 {
		return nil, fmt.Errorf("%w: npeaks must be positive, got %d", ErrInvalidTruncation, npeaks)
	}
	opts := cfg.withDefaults()
	normalize, err := ParseNormalization(string(opts.Normalize))
	if err != nil {
		return nil, err
	}
	opts.Normalize = normalize

	combiner, err := c.Combine(comp, npeaks-1)
	if err != nil {
		return nil, err
	}

	levels := combiner.Levels()
	if err := checkProbabilities(levels, opts.Tolerance); err != nil {
		return nil, err
	}
	assignMasses(levels)

	return assemblePeaks(levels, opts), nil
}

// checkProbabilities rejects non-physical results and clamps round-off
// negatives to zero.
func checkProbabilities(levels []Level, tolerance float64) error {
	maxProb := 0.0
	for _, l := range levels {
		if math.IsNaN(l.Probability) || math.IsInf(l.Probability, 0) {
			return &InstabilityError{Offset: l.Offset, Value: l.Probability, Reason: "probability is not finite"}
		}
		maxProb = math.Max(maxProb, l.Probability)
	}
	if maxProb == 0 {
		return &InstabilityError{Offset: 0, Value: 0, Reason: "all requested levels underflow to zero probability"}
	}

	total := 0.0
	for i := range levels {
		p := levels[i].Probability
		if p < 0 {
			if -p > tolerance*maxProb {
				return &InstabilityError{Offset: levels[i].Offset, Value: p, Reason: "negative probability beyond tolerance"}
			}
			levels[i].Probability = 0
			continue
		}
		total += p
	}
	if total > 1+tolerance {
		return &InstabilityError{Offset: len(levels) - 1, Value: total, Reason: "probabilities sum above 1"}
	}
	return nil
}

// assignMasses fills unreachable or out-of-order centroids one neutron
// shift above the previous level so masses never decrease.
func assignMasses(levels []Level) {
	for k := 1; k < len(levels); k++ {
		prev := levels[k-1].Mass
		m := levels[k].Mass
		if levels[k].Probability == 0 || math.IsNaN(m) || math.IsInf(m, 0) || m < prev {
			levels[k].Mass = prev + core.NeutronShift
		}
	}
}

func assemblePeaks(levels []Level, opts Config) []core.Peak {
	scale := 1.0
	switch opts.Normalize {
	case NormalizeMax:
		maxProb := 0.0
		for _, l := range levels {
			maxProb = math.Max(maxProb, l.Probability)
		}
		scale = 1 / maxProb
	case NormalizeSum:
		total := 0.0
		for _, l := range levels {
			total += l.Probability
		}
		scale = 1 / total
	}

	peaks := make([]core.Peak, len(levels))
	for i, l := range levels {
		peaks[i] = core.Peak{
			Offset:    l.Offset,
			Mass:      l.Mass,
			MZ:        core.MassToCharge(l.Mass, opts.Charge, opts.ChargeCarrier),
			Intensity: l.Probability * scale,
			Charge:    opts.Charge,
		}
	}
	return peaks
}

// DefaultPeakCount suggests how many peaks to request for comp: the square
// root of the largest reachable offset less two, and at least three.
func DefaultPeakCount(comp core.Composition, table *isotope.Table) (int, error) {
	maxOffset := 0
	for _, s := range comp.Symbols() {
		el, err := table.Element(s)
		if err != nil {
			return 0, err
		}
		poly, err := NewElementPolynomial(el, 0)
		if err != nil {
			return 0, err
		}
		maxOffset += comp[s] * poly.MaxOffset()
	}

	n := int(math.Sqrt(float64(maxOffset)) - 2)
	if n < 3 {
		n = 3
	}
	return n, nil
}

// Centroid returns the intensity-weighted mean of peak masses. Over a
// truncated envelope it is lighter than the composition's average mass.
func Centroid(peaks []core.Peak) float64 {
	var mass, total float64
	for _, p := range peaks {
		mass += p.Mass * p.Intensity
		total += p.Intensity
	}
	if total == 0 {
		return 0
	}
	return mass / total
}
