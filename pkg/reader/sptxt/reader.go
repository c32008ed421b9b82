// Package sptxt provides streaming readers for SPTXT (SpectraST) format spectral libraries
package sptxt

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

// maxLineSize bounds a single SPTXT line.
const maxLineSize = 1024 * 1024

// inlineMod matches a residue or "n" followed by its modified mass, as in
// "n[43]" or "C[160]".
var inlineMod = regexp.MustCompile(`([a-zA-Z]?)\[(\d+(?:\.\d+)?)\]`)

// Reader provides streaming access to SPTXT format files
type Reader struct {
	scanner    *bufio.Scanner
	modDB      *core.ModDatabase
	sourceFile string
	lineNum    int
	current    *core.Envelope
	entryErr   error
	err        error
}

// NewReader creates a new SPTXT reader. sourceFile is recorded on every
// envelope.
func NewReader(r io.Reader, modDB *core.ModDatabase, sourceFile string) *Reader {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &Reader{
		scanner:    scanner,
		modDB:      modDB,
		sourceFile: sourceFile,
	}
}

// Next advances to the next entry. Returns false when no more entries or error.
func (r *Reader) Next() bool {
	r.current = nil
	r.entryErr = nil

	env, err := r.readEntry()
	if err != nil {
		if err != io.EOF {
			r.err = err
		}
		return false
	}

	r.current = env
	return true
}

// Envelope returns the current entry
func (r *Reader) Envelope() *core.Envelope {
	return r.current
}

// EntryErr returns a non-fatal problem with the current entry, such as
// inline modifications that the Mods comment field does not explain.
func (r *Reader) EntryErr() error {
	return r.entryErr
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readEntry reads a single entry from the SPTXT file
func (r *Reader) readEntry() (*core.Envelope, error) {
	env := &core.Envelope{
		SourceFile:   r.sourceFile,
		SourceFormat: "sptxt",
	}

	var (
		numPeaks   int
		peaksRead  int
		inPeaks    bool
		started    bool
		inline     []int // positions of inline modifications in Name
		modsField  string
		hasModsKey bool
	)

	finish := func() (*core.Envelope, error) {
		r.resolveMods(env, inline, modsField, hasModsKey)
		return env, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(line, "###") {
			continue
		}
		if line == "" {
			if !started {
				continue
			}
			return finish()
		}
		started = true

		if inPeaks {
			if err := parsePeak(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			peaksRead++
			if peaksRead >= numPeaks {
				return finish()
			}
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected 'Key: value', got '%s'", r.lineNum, line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			positions, err := parseName(env, value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			inline = positions

		case "precursormz":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				env.ObservedMZ = mz
			}

		case "comment":
			modsField, hasModsKey = parseComment(env, value)

		case "numpeaks":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid num peaks: %w", r.lineNum, err)
			}
			numPeaks = n
			inPeaks = true
			if numPeaks == 0 {
				return finish()
			}

		default:
			// LibID, MW, Status, FullName: recomputed or unused
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read entry, return it
	if started && env.Sequence != "" {
		return finish()
	}

	return nil, io.EOF
}

// parseName extracts the sequence and charge from the Name field and
// returns the positions of its inline modifications.
// Format: "n[305]AAAAQDEITGDGTTTVVC[160]LVGELLR/3"
func parseName(env *core.Envelope, name string) ([]int, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid name format '%s', expected 'SEQUENCE/CHARGE'", name)
	}

	charge, err := strconv.Atoi(parts[1])
	if err != nil || charge < 1 {
		return nil, fmt.Errorf("invalid charge in name '%s'", name)
	}

	sequence, positions := stripInlineMods(parts[0])
	for i, aa := range sequence {
		if _, ok := core.AminoAcidCompositions[aa]; !ok {
			return nil, fmt.Errorf("invalid residue %q at position %d in name '%s'", aa, i, name)
		}
	}

	env.Sequence = sequence
	env.Charge = charge
	return positions, nil
}

// stripInlineMods removes "[mass]" annotations and returns the bare
// sequence and the 0-based positions they annotated (-1 for "n[...]",
// the sequence length for "c[...]").
func stripInlineMods(raw string) (string, []int) {
	var sequence strings.Builder
	var positions []int

	lastIdx := 0
	for _, match := range inlineMod.FindAllStringSubmatchIndex(raw, -1) {
		sequence.WriteString(raw[lastIdx:match[0]])

		switch aa := raw[match[2]:match[3]]; aa {
		case "n", "":
			positions = append(positions, -1)
		case "c":
			positions = append(positions, sequence.Len())
		default:
			positions = append(positions, sequence.Len())
			sequence.WriteString(aa)
		}
		lastIdx = match[1]
	}
	sequence.WriteString(raw[lastIdx:])

	return sequence.String(), positions
}

// parseComment records Parent as the observed precursor m/z and returns the
// Mods field, if any.
func parseComment(env *core.Envelope, comment string) (string, bool) {
	var mods string
	var found bool

	for _, field := range strings.Fields(comment) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}

		switch key {
		case "Parent":
			if mz, err := strconv.ParseFloat(value, 64); err == nil && env.ObservedMZ == 0 {
				env.ObservedMZ = mz
			}
		case "Mods":
			mods, found = value, true
		}
	}
	return mods, found
}

// resolveMods turns the Mods comment field into modifications. Inline
// masses in Name are nominal residue masses, so they are only checked
// against the Mods positions, never used as shifts.
func (r *Reader) resolveMods(env *core.Envelope, inline []int, modsField string, hasMods bool) {
	if !hasMods {
		if len(inline) > 0 {
			r.entryErr = fmt.Errorf("entry %s: inline modifications without a Mods comment field", env.Name())
		}
		return
	}

	mods, err := r.modDB.ParseModsField(modsField)
	if err != nil {
		r.entryErr = fmt.Errorf("entry %s: %w", env.Name(), err)
		return
	}

	positions := make([]int, len(mods))
	for i, mod := range mods {
		positions[i] = mod.Position
	}
	slices.Sort(positions)
	slices.Sort(inline)
	if !slices.Equal(positions, inline) {
		r.entryErr = fmt.Errorf("entry %s: inline modifications at %v do not match Mods positions %v", env.Name(), inline, positions)
		return
	}

	env.Modifications = mods
}

// parsePeak checks a peak line (format: "mz\tintensity\tannotation\t...")
func parsePeak(line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("invalid peak format, expected at least 2 fields")
	}

	if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
		return fmt.Errorf("invalid m/z value: %w", err)
	}
	if _, err := strconv.ParseFloat(fields[1], 64); err != nil {
		return fmt.Errorf("invalid intensity value: %w", err)
	}
	return nil
}
