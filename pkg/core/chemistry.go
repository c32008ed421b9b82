// Package core provides compositions, formula parsing, and peptide chemistry
// for isotopic distribution calculations.
package core

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

const (
	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	// NeutronShift is the carbon-13 minus carbon-12 mass, the nominal spacing
	// between adjacent isotopic peaks.
	NeutronShift = 1.00335483507
)

// water is added once per peptide for the free termini.
var water = Composition{"H": 2, "O": 1}

// AminoAcidCompositions maps one-letter residue codes to residue compositions
// (amino acid minus water).
var AminoAcidCompositions = map[rune]Composition{
	'A': {"C": 3, "H": 5, "N": 1, "O": 1},
	'R': {"C": 6, "H": 12, "N": 4, "O": 1},
	'N': {"C": 4, "H": 6, "N": 2, "O": 2},
	'D': {"C": 4, "H": 5, "N": 1, "O": 3},
	'C': {"C": 3, "H": 5, "N": 1, "O": 1, "S": 1},
	'E': {"C": 5, "H": 7, "N": 1, "O": 3},
	'Q': {"C": 5, "H": 8, "N": 2, "O": 2},
	'G': {"C": 2, "H": 3, "N": 1, "O": 1},
	'H': {"C": 6, "H": 7, "N": 3, "O": 1},
	'I': {"C": 6, "H": 11, "N": 1, "O": 1},
	'L': {"C": 6, "H": 11, "N": 1, "O": 1},
	'K': {"C": 6, "H": 12, "N": 2, "O": 1},
	'M': {"C": 5, "H": 9, "N": 1, "O": 1, "S": 1},
	'F': {"C": 9, "H": 9, "N": 1, "O": 1},
	'P': {"C": 5, "H": 7, "N": 1, "O": 1},
	'S': {"C": 3, "H": 5, "N": 1, "O": 2},
	'T': {"C": 4, "H": 7, "N": 1, "O": 2},
	'W': {"C": 11, "H": 10, "N": 2, "O": 1},
	'Y': {"C": 9, "H": 9, "N": 1, "O": 2},
	'V': {"C": 5, "H": 9, "N": 1, "O": 1},
	'U': {"C": 3, "H": 5, "N": 1, "O": 1, "Se": 1},
}

// PeptideComposition returns the elemental composition of a peptide
// including water and modifications. Modifications without an elemental
// delta cannot be expressed as atoms; their summed mass is returned as
// massShift.
func PeptideComposition(sequence string, modifications []Modification) (comp Composition, massShift float64, err error) {
	if sequence == "" {
		return nil, 0, fmt.Errorf("%w: empty peptide sequence", ErrInvalidComposition)
	}

	comp = water.Clone()
	for i, aa := range sequence {
		residue, ok := AminoAcidCompositions[aa]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown residue %q at position %d in %s", ErrInvalidComposition, aa, i, sequence)
		}
		for s, n := range residue {
			comp[s] += n
		}
	}

	for _, mod := range modifications {
		if len(mod.Delta) == 0 {
			massShift += mod.Mass
			continue
		}
		comp, err = comp.Apply(mod.Delta)
		if err != nil {
			return nil, 0, fmt.Errorf("modification %s: %w", mod.Name, err)
		}
	}

	return comp, massShift, nil
}

// CalculateNeutralMass computes the neutral monoisotopic mass of a peptide
func CalculateNeutralMass(sequence string, modifications []Modification) (float64, error) {
	comp, shift, err := PeptideComposition(sequence, modifications)
	if err != nil {
		return 0, err
	}
	mass, err := comp.MassTable(isotope.Default())
	if err != nil {
		return 0, err
	}
	return mass + shift, nil
}

// CalculatePeptideMass computes monoisotopic mass of a peptide sequence
// including modifications, then returns the m/z for a given charge state.
func CalculatePeptideMass(sequence string, charge int, modifications []Modification) (float64, error) {
	mass, err := CalculateNeutralMass(sequence, modifications)
	if err != nil {
		return 0, err
	}
	return MassToCharge(mass, charge, ProtonMass), nil
}

// MassToCharge converts a neutral mass to m/z: (mass + z * carrier) / |z|.
// A negative charge removes carriers. Charge 0 returns the neutral mass.
func MassToCharge(mass float64, charge int, carrier float64) float64 {
	if charge == 0 {
		return mass
	}
	z := float64(charge)
	return (mass + z*carrier) / math.Abs(z)
}

// RoundFloat rounds a float to n decimal places
func RoundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
