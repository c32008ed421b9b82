package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ElectronMass is the rest mass of an electron in daltons.
const ElectronMass = 0.000548579909

var (
	adductPattern = regexp.MustCompile(`^\[(\d*)M((?:[+-][0-9A-Za-z\[\]]+)*)\](\d*)([+-])$`)
	adductTerm    = regexp.MustCompile(`([+-])(\d*)([A-Z][0-9A-Za-z\[\]]*)`)
)

// Adduct is a precursor ion type such as "[M+H]+" or "[2M+Na]+".
type Adduct struct {
	Name     string
	Multimer int     // Molecules per ion; 1 for "[M...]"
	Charge   int     // Signed charge
	Delta    Delta   // Atoms gained (positive) or lost (negative) per ion
	Carrier  float64 // Per-charge mass for MassToCharge of the ion composition
}

// ParseAdduct parses a bracketed precursor ion type. Each added or lost
// species is a formula with an optional count, so "[M+H-H2O]+" and
// "[M+2H]2+" are both accepted. The species atoms are collected in Delta;
// Carrier only accounts for the electrons, so that
// MassToCharge(mass(Ion(comp)), Charge, Carrier) is the ion's m/z.
func ParseAdduct(s string) (Adduct, error) {
	name := strings.TrimSpace(s)
	m := adductPattern.FindStringSubmatch(name)
	if m == nil {
		return Adduct{}, fmt.Errorf("invalid adduct '%s', expected a form like [M+H]+", s)
	}

	a := Adduct{Name: name, Multimer: 1, Charge: 1}
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return Adduct{}, fmt.Errorf("invalid multimer count in adduct '%s'", s)
		}
		a.Multimer = n
	}
	if m[3] != "" {
		z, err := strconv.Atoi(m[3])
		if err != nil || z < 1 {
			return Adduct{}, fmt.Errorf("invalid charge in adduct '%s'", s)
		}
		a.Charge = z
	}
	if m[4] == "-" {
		a.Charge = -a.Charge
	}

	// The species part must be consumed entirely by terms
	species := m[2]
	a.Delta = make(Delta)
	consumed := 0
	for _, term := range adductTerm.FindAllStringSubmatchIndex(species, -1) {
		if term[0] != consumed {
			return Adduct{}, fmt.Errorf("invalid species in adduct '%s'", s)
		}
		consumed = term[1]

		count := 1
		if digits := species[term[4]:term[5]]; digits != "" {
			n, err := strconv.Atoi(digits)
			if err != nil || n < 1 {
				return Adduct{}, fmt.Errorf("invalid species count in adduct '%s'", s)
			}
			count = n
		}
		if species[term[2]:term[3]] == "-" {
			count = -count
		}

		comp, err := ParseFormula(species[term[6]:term[7]])
		if err != nil {
			return Adduct{}, fmt.Errorf("adduct '%s': %w", s, err)
		}
		for sym, n := range comp {
			a.Delta[sym] += count * n
			if a.Delta[sym] == 0 {
				delete(a.Delta, sym)
			}
		}
	}
	if consumed != len(species) {
		return Adduct{}, fmt.Errorf("invalid species in adduct '%s'", s)
	}

	// A positive ion has lost one electron per charge
	a.Carrier = -ElectronMass
	return a, nil
}

// Ion returns the composition of the ion formed from comp: the multimer
// plus the gained and minus the lost species.
func (a Adduct) Ion(comp Composition) (Composition, error) {
	ion, err := comp.Scale(a.Multimer).Apply(a.Delta)
	if err != nil {
		return nil, fmt.Errorf("adduct %s: %w", a.Name, err)
	}
	return ion, nil
}
