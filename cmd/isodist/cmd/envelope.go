package cmd

import (
	"fmt"

	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/distribution"
	"github.com/ChrisMcGann/isodist/pkg/filter"
	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

// envelopeBuilder fills in the composition and isotopic peaks of an
// envelope skeleton
type envelopeBuilder struct {
	calc      *distribution.Calculator
	npeaks    int // 0 picks distribution.DefaultPeakCount
	normalize distribution.Normalization
	filter    *filter.Config // nil keeps every peak
}

func newEnvelopeBuilder(table *isotope.Table, npeaks int, normalize string) (*envelopeBuilder, error) {
	if npeaks < 0 {
		return nil, fmt.Errorf("%w: --peaks must not be negative, got %d", distribution.ErrInvalidTruncation, npeaks)
	}
	norm, err := distribution.ParseNormalization(normalize)
	if err != nil {
		return nil, err
	}
	calc, err := distribution.NewCalculator(table, distribution.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &envelopeBuilder{calc: calc, npeaks: npeaks, normalize: norm}, nil
}

// composition resolves the envelope's atoms. Mass-only modifications are
// returned as a neutral mass shift.
func (b *envelopeBuilder) composition(env *core.Envelope) (core.Composition, float64, error) {
	switch {
	case env.Sequence != "":
		return core.PeptideComposition(env.Sequence, env.Modifications)
	case env.Formula != "":
		comp, err := core.ParseFormulaTable(env.Formula, b.calc.Table())
		return comp, 0, err
	}
	return nil, 0, fmt.Errorf("entry %s has neither a sequence nor a formula", env.Name())
}

// build computes the envelope's peaks in place
func (b *envelopeBuilder) build(env *core.Envelope) error {
	comp, shift, err := b.composition(env)
	if err != nil {
		return err
	}

	var carrier float64
	if env.Adduct != "" {
		adduct, err := core.ParseAdduct(env.Adduct)
		if err != nil {
			return err
		}
		comp, err = adduct.Ion(comp)
		if err != nil {
			return fmt.Errorf("entry %s: %w", env.Name(), err)
		}
		shift *= float64(adduct.Multimer)
		env.Charge = adduct.Charge
		carrier = adduct.Carrier
	}

	npeaks := b.npeaks
	if npeaks == 0 {
		npeaks, err = distribution.DefaultPeakCount(comp, b.calc.Table())
		if err != nil {
			return err
		}
	}

	peaks, err := b.calc.Variants(comp, npeaks, &distribution.Config{
		Charge:        env.Charge,
		ChargeCarrier: carrier,
		Normalize:     b.normalize,
	})
	if err != nil {
		return fmt.Errorf("entry %s: %w", env.Name(), err)
	}

	env.Composition = comp
	env.Peaks = peaks
	if shift != 0 {
		env.ShiftMass(shift)
	}

	if b.filter != nil {
		filter.RemoveZeroIntensityPeaks(env)
		b.filter.Apply(env)
	}
	return nil
}
