package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

// Composition maps element symbols to non-negative atom counts. Arithmetic
// methods return new compositions and never modify the receiver.
type Composition map[string]int

// Delta is a signed elemental change, such as the composition shift of a
// modification.
type Delta map[string]int

// CalculateMass returns the monoisotopic mass of a raw element-count mapping.
func CalculateMass(counts map[string]int) (float64, error) {
	return Composition(counts).Mass()
}

// Clone returns an independent copy of c.
func (c Composition) Clone() Composition {
	out := make(Composition, len(c))
	for s, n := range c {
		out[s] = n
	}
	return out
}

// Scale multiplies every count by factor. Scale panics if factor is negative.
func (c Composition) Scale(factor int) Composition {
	if factor < 0 {
		panic("core: negative Composition.Scale factor")
	}
	out := make(Composition, len(c))
	if factor == 0 {
		return out
	}
	for s, n := range c {
		out[s] = n * factor
	}
	return out
}

// Add returns the symbol-wise sum of c and other.
func (c Composition) Add(other Composition) Composition {
	out := c.Clone()
	for s, n := range other {
		out[s] += n
	}
	return out
}

// Apply adds a signed delta. It fails if any count would become negative.
func (c Composition) Apply(d Delta) (Composition, error) {
	out := c.Clone()
	for s, n := range d {
		out[s] += n
		if out[s] < 0 {
			return nil, fmt.Errorf("%w: applying delta leaves %d %s atoms", ErrInvalidComposition, out[s], s)
		}
		if out[s] == 0 {
			delete(out, s)
		}
	}
	return out, nil
}

// Equal reports whether both compositions have the same non-zero counts.
func (c Composition) Equal(other Composition) bool {
	for s, n := range c {
		if n != 0 && other[s] != n {
			return false
		}
	}
	for s, n := range other {
		if n != 0 && c[s] != n {
			return false
		}
	}
	return true
}

// TotalAtoms returns the sum of all counts.
func (c Composition) TotalAtoms() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Symbols returns the symbols with non-zero counts in Hill order.
func (c Composition) Symbols() []string {
	symbols := make([]string, 0, len(c))
	for s, n := range c {
		if n != 0 {
			symbols = append(symbols, s)
		}
	}

	// Hill order: C then H when carbon is present, everything else alphabetical
	hasCarbon := c["C"] > 0
	rank := func(s string) int {
		if !hasCarbon {
			return 2
		}
		switch s {
		case "C":
			return 0
		case "H":
			return 1
		}
		return 2
	}
	sort.Slice(symbols, func(i, j int) bool {
		ri, rj := rank(symbols[i]), rank(symbols[j])
		if ri != rj {
			return ri < rj
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}

// String formats the composition as a Hill-order formula.
func (c Composition) String() string {
	var sb strings.Builder
	for _, s := range c.Symbols() {
		sb.WriteString(s)
		if n := c[s]; n != 1 {
			sb.WriteString(strconv.Itoa(n))
		}
	}
	return sb.String()
}

// Validate checks that no count is negative.
func (c Composition) Validate() error {
	for _, s := range sortedKeys(c) {
		if c[s] < 0 {
			return fmt.Errorf("%w: negative count %d for %s", ErrInvalidComposition, c[s], s)
		}
	}
	return nil
}

// Mass returns the monoisotopic mass using the built-in isotope table.
func (c Composition) Mass() (float64, error) {
	return c.MassTable(isotope.Default())
}

// MassTable returns the monoisotopic mass: each count times the mass of that
// element's most abundant isotope.
func (c Composition) MassTable(table *isotope.Table) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return sumMass(c, table, func(el *isotope.Element) float64 {
		return el.Monoisotopic().Mass
	})
}

// AverageMass returns the abundance-weighted molecular mass.
func (c Composition) AverageMass(table *isotope.Table) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	return sumMass(c, table, (*isotope.Element).AverageMass)
}

// MassTable returns the signed monoisotopic mass change of the delta.
func (d Delta) MassTable(table *isotope.Table) (float64, error) {
	return sumMass(d, table, func(el *isotope.Element) float64 {
		return el.Monoisotopic().Mass
	})
}

// String formats the delta with signed counts, e.g. "H-1N-1O".
func (d Delta) String() string {
	var sb strings.Builder
	for _, s := range sortedKeys(d) {
		n := d[s]
		if n == 0 {
			continue
		}
		sb.WriteString(s)
		if n != 1 {
			sb.WriteString(strconv.Itoa(n))
		}
	}
	return sb.String()
}

func sumMass[M ~map[string]int](counts M, table *isotope.Table, massOf func(*isotope.Element) float64) (float64, error) {
	mass := 0.0
	// Sorted so the sum is reproducible across calls
	for _, s := range sortedKeys(counts) {
		n := counts[s]
		if n == 0 {
			continue
		}
		el, err := table.Element(s)
		if err != nil {
			return 0, err
		}
		mass += float64(n) * massOf(el)
	}
	return mass, nil
}

func sortedKeys[M ~map[string]int](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
