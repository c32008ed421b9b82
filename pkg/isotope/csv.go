package isotope

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadCSV reads an isotope table from CSV (format: symbol,mass_number,mass,abundance).
// The first line is a header. Rows for the same symbol are grouped into one element.
func LoadCSV(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	var order []string
	bySymbol := make(map[string]*Element)

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			return nil, fmt.Errorf("line %d: invalid format, expected 4 comma-separated fields", lineNum)
		}

		symbol := strings.TrimSpace(parts[0])
		if symbol == "" {
			return nil, fmt.Errorf("line %d: empty element symbol", lineNum)
		}

		massNumber, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass number '%s': %w", lineNum, parts[1], err)
		}
		mass, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, parts[2], err)
		}
		abundance, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid abundance value '%s': %w", lineNum, parts[3], err)
		}

		el, ok := bySymbol[symbol]
		if !ok {
			el = &Element{Symbol: symbol}
			bySymbol[symbol] = el
			order = append(order, symbol)
		}
		el.Isotopes = append(el.Isotopes, Isotope{MassNumber: massNumber, Mass: mass, Abundance: abundance})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}

	elements := make([]*Element, 0, len(order))
	for _, s := range order {
		elements = append(elements, bySymbol[s])
	}
	return NewTable(elements...)
}
