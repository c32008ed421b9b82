// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// modDefinition is a named mass shift with an optional elemental delta.
type modDefinition struct {
	mass  float64
	delta Delta
}

// ModDatabase stores modification definitions
type ModDatabase struct {
	mods map[string]modDefinition
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]modDefinition),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,formula]).
// The optional formula column is a signed delta such as "H-1N-1O".
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		def := modDefinition{mass: mass}
		if len(parts) >= 3 {
			if formula := strings.TrimSpace(parts[2]); formula != "" {
				delta, err := ParseDelta(formula)
				if err != nil {
					return fmt.Errorf("line %d: %w", lineNum, err)
				}
				def.delta = delta
			}
		}

		db.mods[modName] = def
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	def, ok := db.mods[name]
	return def.mass, ok
}

// GetDelta returns the elemental delta for a modification name. Mass-only
// modifications report false.
func (db *ModDatabase) GetDelta(name string) (Delta, bool) {
	def, ok := db.mods[name]
	if !ok || len(def.delta) == 0 {
		return nil, false
	}
	return def.delta, true
}

// Add adds or updates a mass-only modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = modDefinition{mass: mass}
}

// AddFormula adds or updates a modification with its elemental delta.
func (db *ModDatabase) AddFormula(name string, mass float64, formula string) error {
	delta, err := ParseDelta(formula)
	if err != nil {
		return fmt.Errorf("modification %s: %w", name, err)
	}
	db.mods[name] = modDefinition{mass: mass, delta: delta}
	return nil
}

// Lookup builds a Modification for a named or numeric mass at a position.
func (db *ModDatabase) Lookup(nameOrMass string, position int) (Modification, error) {
	// Try to parse as a number first (direct mass)
	if mass, err := strconv.ParseFloat(nameOrMass, 64); err == nil {
		return Modification{Mass: mass, Position: position, Name: nameOrMass}, nil
	}

	def, ok := db.mods[nameOrMass]
	if !ok {
		return Modification{}, fmt.Errorf("unknown modification '%s'", nameOrMass)
	}
	return Modification{Mass: def.mass, Position: position, Name: nameOrMass, Delta: def.delta}, nil
}

// ParseModString parses a modification string like "57.021464@2;15.994915@8" or "Carbamidomethyl@C2;Oxidation@M8"
// Returns a list of modifications
func (db *ModDatabase) ParseModString(modStr string, sequence string) ([]Modification, error) {
	if modStr == "" {
		return nil, nil
	}

	var mods []Modification
	for _, part := range strings.Split(modStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		atParts := strings.Split(part, "@")
		if len(atParts) != 2 {
			return nil, fmt.Errorf("invalid modification format '%s', expected 'name@position' or 'mass@position'", part)
		}

		position, err := parsePosition(atParts[1], sequence)
		if err != nil {
			return nil, fmt.Errorf("invalid position '%s': %w", atParts[1], err)
		}

		mod, err := db.Lookup(strings.TrimSpace(atParts[0]), position)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}

	return mods, nil
}

// ParseModsField parses the Mods field of MSP and SPTXT comments:
// "count/pos,AA,Name/pos,AA,Name..." with 0-based positions (-1 for the N
// terminus), or "0" for none.
func (db *ModDatabase) ParseModsField(field string) ([]Modification, error) {
	parts := strings.Split(field, "/")
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid Mods count '%s'", parts[0])
	}
	if count != len(parts)-1 {
		return nil, fmt.Errorf("mods field declares %d modifications but lists %d", count, len(parts)-1)
	}

	var result []Modification
	for _, part := range parts[1:] {
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid Mods entry '%s', expected 'position,residue,name'", part)
		}
		pos, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("invalid Mods position '%s'", fields[0])
		}
		mod, err := db.Lookup(fields[2], pos)
		if err != nil {
			return nil, err
		}
		result = append(result, mod)
	}
	return result, nil
}

// parsePosition parses a position string that may be just a number or include an amino acid
// Examples: "2", "C2", "R-1" (N-terminal), "A0"
func parsePosition(posStr string, sequence string) (int, error) {
	posStr = strings.TrimSpace(posStr)

	if posStr == "-1" || strings.HasSuffix(posStr, "-1") {
		return -1, nil // N-terminal
	}

	// Remove leading amino acid letter if present
	posStr = strings.TrimLeft(posStr, "ACDEFGHIKLMNPQRSTUVWY")

	pos, err := strconv.Atoi(posStr)
	if err != nil {
		return 0, fmt.Errorf("invalid position number: %w", err)
	}

	// Convert to 0-based indexing if it's 1-based
	if pos > 0 {
		pos = pos - 1
	}
	if pos > len(sequence) {
		return 0, fmt.Errorf("position %d beyond sequence length %d", pos+1, len(sequence))
	}

	return pos, nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common Unimod
// modifications and their elemental deltas.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	for _, m := range []struct {
		name    string
		mass    float64
		formula string
	}{
		{"Acetyl", 42.010565, "H2C2O"},
		{"Amidated", -0.984016, "HNO-1"},
		{"Biotin", 226.077598, "H14C10N2O2S"},
		{"Carbamidomethyl", 57.021464, "H3C2NO"},
		{"Carbamyl", 43.005814, "HCNO"},
		{"Carboxymethyl", 58.005479, "H2C2O2"},
		{"Deamidated", 0.984016, "H-1N-1O"},
		{"Phospho", 79.966331, "HO3P"},
		{"Dehydrated", -18.010565, "H-2O-1"},
		{"Propionamide", 71.037114, "H5C3NO"},
		{"Glu->pyro-Glu", -18.010565, "H-2O-1"},
		{"Gln->pyro-Glu", -17.026549, "H-3N-1"},
		{"Cation:Na", 21.981943, "H-1Na"},
		{"Methyl", 14.01565, "H2C"},
		{"Oxidation", 15.994915, "O"},
		{"Dimethyl", 28.0313, "H4C2"},
		{"Trimethyl", 42.04695, "H6C3"},
		{"Sulfo", 79.956815, "O3S"},
		{"Hex", 162.052824, "H10C6O5"},
		{"HexNAc", 203.079373, "H13C8NO5"},
		{"Myristoyl", 210.198366, "H26C14O"},
		{"Guanidinyl", 42.021798, "H2CN2"},
		{"Propionyl", 56.026215, "H4C3O"},
		{"TMT6plex", 229.162932, "H20C8C[13]4NN[15]O2"},
		{"TMT10plex", 229.162932, "H20C8C[13]4NN[15]O2"},
		{"TMT11plex", 229.162932, "H20C8C[13]4NN[15]O2"},
		{"TMT", 229.162932, "H20C8C[13]4NN[15]O2"},
		{"TMTPro", 304.207146, "H25C8C[13]7NN[15]2O3"},
		{"TMT16plex", 304.207146, "H25C8C[13]7NN[15]2O3"},
		{"iTRAQ4plex", 144.102063, "H12C4C[13]3NN[15]O"},
	} {
		if err := db.AddFormula(m.name, m.mass, m.formula); err != nil {
			panic("core: invalid built-in modification: " + err.Error())
		}
	}

	// Mass-only entries without a tabulated composition here
	db.Add("iTRAQ8plex", 304.205360)
	db.Add("FAD", 783.141486)

	return db
}
