package core

import (
	"fmt"
	"strconv"

	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

// formulaToken is one "Symbol[massNumber]count" group of a condensed formula.
type formulaToken struct {
	symbol string
	count  int
	offset int
}

// ParseFormula parses a condensed formula such as "C6H12O6" or "C[13]2C4H12O6"
// against the built-in isotope table. Counts default to 1 and repeated symbols
// are summed. Parentheses and hydrate notation are not supported.
func ParseFormula(formula string) (Composition, error) {
	return ParseFormulaTable(formula, isotope.Default())
}

// ParseFormulaTable parses a formula and checks every symbol against table.
func ParseFormulaTable(formula string, table *isotope.Table) (Composition, error) {
	tokens, err := tokenizeFormula(formula, false)
	if err != nil {
		return nil, err
	}

	comp := make(Composition, len(tokens))
	for _, tok := range tokens {
		if _, err := table.Element(tok.symbol); err != nil {
			return nil, &FormulaError{
				Formula: formula,
				Offset:  tok.offset,
				Reason:  fmt.Sprintf("unrecognized element symbol %q", tok.symbol),
				Err:     err,
			}
		}
		comp[tok.symbol] += tok.count
	}

	return comp, nil
}

// ParseDelta parses a signed elemental delta such as "H-1N-1O" (deamidation).
// Symbols are not checked against an isotope table.
func ParseDelta(formula string) (Delta, error) {
	tokens, err := tokenizeFormula(formula, true)
	if err != nil {
		return nil, err
	}

	delta := make(Delta, len(tokens))
	for _, tok := range tokens {
		delta[tok.symbol] += tok.count
	}
	return delta, nil
}

func tokenizeFormula(formula string, signed bool) ([]formulaToken, error) {
	if formula == "" {
		return nil, &FormulaError{Formula: formula, Reason: "empty formula"}
	}

	fail := func(offset int, format string, args ...any) error {
		return &FormulaError{Formula: formula, Offset: offset, Reason: fmt.Sprintf(format, args...)}
	}

	var tokens []formulaToken
	i := 0
	for i < len(formula) {
		start := i
		if !isUpper(formula[i]) {
			return nil, fail(i, "unexpected character %q", formula[i])
		}
		i++
		for i < len(formula) && isLower(formula[i]) {
			i++
		}

		// Fixed isotope suffix, e.g. C[13]
		if i < len(formula) && formula[i] == '[' {
			j := i + 1
			for j < len(formula) && isDigit(formula[j]) {
				j++
			}
			if j == i+1 || j >= len(formula) || formula[j] != ']' {
				return nil, fail(i, "invalid isotope mass number")
			}
			i = j + 1
		}
		symbol := formula[start:i]

		sign := 1
		if signed && i < len(formula) && formula[i] == '-' {
			sign = -1
			i++
		}

		digits := i
		for i < len(formula) && isDigit(formula[i]) {
			i++
		}
		count := 1
		if i > digits {
			n, err := strconv.Atoi(formula[digits:i])
			if err != nil {
				return nil, fail(digits, "invalid count %q", formula[digits:i])
			}
			count = n
		} else if sign < 0 {
			return nil, fail(digits, "expected count after '-'")
		}

		tokens = append(tokens, formulaToken{symbol: symbol, count: sign * count, offset: start})
	}

	return tokens, nil
}

func isUpper(b byte) bool { return b >= 'A' && b <= 'Z' }
func isLower(b byte) bool { return b >= 'a' && b <= 'z' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
