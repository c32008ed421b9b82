// Package isotope provides element isotope tables: exact isotope masses and
// natural abundances used for mass and isotopic distribution calculations.
package isotope

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// AbundanceTolerance is the allowed deviation of an element's abundance sum from 1.
const AbundanceTolerance = 1e-6

var (
	// ErrUnknownElement is returned when a symbol has no entry in the table.
	ErrUnknownElement = errors.New("unknown element")
	// ErrInvalidTable is returned when isotope data violates table invariants.
	ErrInvalidTable = errors.New("invalid isotope table")
)

// UnknownElementError names the symbol that could not be resolved.
type UnknownElementError struct {
	Symbol string
}

func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("unknown element %q", e.Symbol)
}

// Is reports whether target is ErrUnknownElement.
func (e *UnknownElementError) Is(target error) bool {
	return target == ErrUnknownElement
}

// Isotope is a single isotope of an element.
type Isotope struct {
	MassNumber int     // Nucleon count (e.g. 13 for carbon-13)
	Mass       float64 // Exact mass in Da
	Abundance  float64 // Natural abundance, 0..1
}

// Element is the ordered isotope list of one element symbol.
type Element struct {
	Symbol   string
	Isotopes []Isotope // Sorted by ascending mass
}

// Monoisotopic returns the most abundant isotope. Ties go to the lighter one.
func (e *Element) Monoisotopic() Isotope {
	best := e.Isotopes[0]
	for _, iso := range e.Isotopes[1:] {
		if iso.Abundance > best.Abundance {
			best = iso
		}
	}
	return best
}

// AverageMass returns the abundance-weighted mass of the element.
func (e *Element) AverageMass() float64 {
	mass := 0.0
	for _, iso := range e.Isotopes {
		mass += iso.Mass * iso.Abundance
	}
	return mass
}

// Isotope returns the isotope with the given mass number.
func (e *Element) Isotope(massNumber int) (Isotope, bool) {
	for _, iso := range e.Isotopes {
		if iso.MassNumber == massNumber {
			return iso, true
		}
	}
	return Isotope{}, false
}

// Validate checks that the element has isotopes with non-negative abundances
// summing to 1.
func (e *Element) Validate() error {
	if e.Symbol == "" {
		return fmt.Errorf("%w: element symbol is required", ErrInvalidTable)
	}
	if len(e.Isotopes) == 0 {
		return fmt.Errorf("%w: element %s has no isotopes", ErrInvalidTable, e.Symbol)
	}

	total := 0.0
	for i, iso := range e.Isotopes {
		if math.IsNaN(iso.Mass) || iso.Mass <= 0 {
			return fmt.Errorf("%w: element %s isotope %d has invalid mass", ErrInvalidTable, e.Symbol, i)
		}
		if math.IsNaN(iso.Abundance) || iso.Abundance < 0 {
			return fmt.Errorf("%w: element %s isotope %d has negative abundance", ErrInvalidTable, e.Symbol, i)
		}
		if i > 0 && iso.Mass <= e.Isotopes[i-1].Mass {
			return fmt.Errorf("%w: element %s isotopes must be sorted by ascending mass", ErrInvalidTable, e.Symbol)
		}
		total += iso.Abundance
	}
	if math.Abs(total-1) > AbundanceTolerance {
		return fmt.Errorf("%w: element %s abundances sum to %.8f", ErrInvalidTable, e.Symbol, total)
	}

	return nil
}

func (e *Element) clone() *Element {
	isotopes := make([]Isotope, len(e.Isotopes))
	copy(isotopes, e.Isotopes)
	return &Element{Symbol: e.Symbol, Isotopes: isotopes}
}

// Table maps element symbols to their isotopes. A Table is immutable once
// built and safe for concurrent use.
type Table struct {
	elements map[string]*Element
	fixed    sync.Map // "C[13]" -> *Element
}

// NewTable builds a table from the given elements. Inputs are copied, sorted
// by mass, given mass numbers where missing, and validated.
func NewTable(elements ...*Element) (*Table, error) {
	t := &Table{elements: make(map[string]*Element, len(elements))}

	for _, el := range elements {
		if el == nil {
			continue
		}
		el = el.clone()
		sort.Slice(el.Isotopes, func(i, j int) bool {
			return el.Isotopes[i].Mass < el.Isotopes[j].Mass
		})
		for i := range el.Isotopes {
			if el.Isotopes[i].MassNumber == 0 {
				el.Isotopes[i].MassNumber = int(math.Round(el.Isotopes[i].Mass))
			}
		}
		if err := el.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.elements[el.Symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate element %s", ErrInvalidTable, el.Symbol)
		}
		t.elements[el.Symbol] = el
	}

	return t, nil
}

// Element resolves a symbol. Symbols of the form "X[n]" resolve to a
// single-isotope element pinned to isotope n of X.
func (t *Table) Element(symbol string) (*Element, error) {
	if el, ok := t.elements[symbol]; ok {
		return el, nil
	}
	if cached, ok := t.fixed.Load(symbol); ok {
		return cached.(*Element), nil
	}

	base, massNumber, ok := SplitFixedIsotope(symbol)
	if !ok {
		return nil, &UnknownElementError{Symbol: symbol}
	}
	el, ok := t.elements[base]
	if !ok {
		return nil, &UnknownElementError{Symbol: symbol}
	}
	iso, ok := el.Isotope(massNumber)
	if !ok {
		return nil, &UnknownElementError{Symbol: symbol}
	}
	iso.Abundance = 1

	fixed := &Element{Symbol: symbol, Isotopes: []Isotope{iso}}
	actual, _ := t.fixed.LoadOrStore(symbol, fixed)
	return actual.(*Element), nil
}

// Has reports whether the symbol resolves in the table.
func (t *Table) Has(symbol string) bool {
	_, err := t.Element(symbol)
	return err == nil
}

// Symbols returns the table's base element symbols in sorted order.
func (t *Table) Symbols() []string {
	symbols := make([]string, 0, len(t.elements))
	for s := range t.elements {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Len returns the number of base elements.
func (t *Table) Len() int {
	return len(t.elements)
}

// SplitFixedIsotope splits "C[13]" into ("C", 13).
func SplitFixedIsotope(symbol string) (string, int, bool) {
	open := strings.IndexByte(symbol, '[')
	if open <= 0 || !strings.HasSuffix(symbol, "]") {
		return "", 0, false
	}
	n, err := strconv.Atoi(symbol[open+1 : len(symbol)-1])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return symbol[:open], n, true
}
