// Package msp provides streaming readers for MSP format spectral libraries.
// Entries are read as envelope skeletons: identity, charge, adduct, observed
// precursor m/z, and modifications. Library fragment peaks are consumed and
// discarded.
package msp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

// maxLineSize bounds a single MSP line; long synonym and comment lines
// exceed bufio's default.
const maxLineSize = 1024 * 1024

// Reader provides streaming access to MSP format files
type Reader struct {
	scanner    *bufio.Scanner
	modDB      *core.ModDatabase
	sourceFile string
	lineNum    int
	current    *core.Envelope
	entryErr   error
	err        error
}

// NewReader creates a new MSP reader. sourceFile is recorded on every
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

// EntryErr returns a non-fatal problem with the current entry, such as an
// unknown modification. The entry is still returned by Envelope.
func (r *Reader) EntryErr() error {
	return r.entryErr
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// readEntry reads a single entry from the MSP file
func (r *Reader) readEntry() (*core.Envelope, error) {
	env := &core.Envelope{
		SourceFile:   r.sourceFile,
		SourceFormat: "msp",
	}

	var (
		numPeaks  int
		peaksRead int
		inPeaks   bool
		started   bool
		meta      commentFields
		negative  bool
	)

	finish := func() (*core.Envelope, error) {
		if negative && env.Charge > 0 {
			env.Charge = -env.Charge
		}
		r.resolveMods(env, meta)
		return env, nil
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if line == "" {
			// Skip empty lines between entries
			if !started {
				continue
			}
			// A blank line ends an entry whose peak list was short
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
			r.parseName(env, value)

		case "formula":
			env.Formula = value

		case "precursormz", "precursor_mz", "prec_mz":
			if mz, err := strconv.ParseFloat(value, 64); err == nil {
				env.ObservedMZ = mz
			}

		case "charge":
			z, err := parseCharge(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", r.lineNum, err)
			}
			env.Charge = z

		case "precursor_type", "precursortype", "adduct":
			env.Adduct = value

		case "ion_mode", "ionmode":
			negative = strings.HasPrefix(strings.ToLower(value), "n")

		case "comment":
			meta = parseComment(env, value)

		case "num peaks":
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
			// MW, Synon, and other metadata are recomputed or unused
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// If we have a partially read entry, return it
	if started && env.Name() != "" {
		return finish()
	}

	return nil, io.EOF
}

// parseName reads "SEQUENCE/CHARGE" as a peptide and anything else as a
// free-text title.
func (r *Reader) parseName(env *core.Envelope, name string) {
	seq, rest, ok := strings.Cut(name, "/")
	if ok && isPeptide(seq) {
		// NIST names carry extra fields after an underscore, e.g. "PEPTIDE/2_0"
		chargeStr, _, _ := strings.Cut(rest, "_")
		if z, err := strconv.Atoi(chargeStr); err == nil && z > 0 {
			env.Sequence = seq
			env.Charge = z
			return
		}
	}
	env.Title = name
}

func isPeptide(seq string) bool {
	if seq == "" {
		return false
	}
	for _, aa := range seq {
		if _, ok := core.AminoAcidCompositions[aa]; !ok {
			return false
		}
	}
	return true
}

// parseCharge accepts "2", "+2", "2+", "-1", and "1-".
func parseCharge(s string) (int, error) {
	s = strings.TrimSpace(s)
	sign := 1
	switch {
	case strings.HasSuffix(s, "+"):
		s = strings.TrimSuffix(s, "+")
	case strings.HasSuffix(s, "-"):
		s = strings.TrimSuffix(s, "-")
		sign = -1
	}
	z, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid charge '%s': %w", s, err)
	}
	return sign * z, nil
}

// commentFields holds the modification fields of a Comment line.
type commentFields struct {
	mods      string
	modString string
}

// parseComment extracts metadata from Comment field
func parseComment(env *core.Envelope, comment string) commentFields {
	var meta commentFields

	// Comment format: key=value key=value...
	// Example: Parent=414.71 Collision_energy=35 Mods=1/0,C,Carbamidomethyl ModString=SEQUENCE//Carbamidomethyl@C1/2
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
			meta.mods = value
		case "ModString":
			meta.modString = value
		}
	}
	return meta
}

// resolveMods turns the Mods or ModString comment fields into
// modifications. Mods wins when both are present.
func (r *Reader) resolveMods(env *core.Envelope, meta commentFields) {
	var err error
	switch {
	case meta.mods != "":
		env.Modifications, err = r.modDB.ParseModsField(meta.mods)
	case meta.modString != "":
		env.Modifications, err = r.parseModString(env.Sequence, meta.modString)
	}
	if err != nil {
		r.entryErr = fmt.Errorf("entry %s: %w", env.Name(), err)
	}
}

// parseModString parses the ModString field
func (r *Reader) parseModString(sequence, modString string) ([]core.Modification, error) {
	// Format: SEQUENCE//Mod@Pos;Mod@Pos/Charge
	// Example: EIESAGDITFNR//TMT_Pro@R-1/4
	_, modPart, ok := strings.Cut(modString, "//")
	if !ok {
		return nil, nil
	}
	// Remove trailing charge info if present
	modPart, _, _ = strings.Cut(modPart, "/")

	return r.modDB.ParseModString(modPart, sequence)
}

// parsePeak checks a peak line (format: "mz\tintensity\t\"annotation\"")
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
