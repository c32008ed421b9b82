package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Peak is one isotopic variant: a neutron-substitution level of a molecule
// with its centroid mass and abundance.
type Peak struct {
	Offset    int     // Neutron-substitution index from the lightest combination
	Mass      float64 // Neutral centroid mass of the level
	MZ        float64 // Mass-to-charge; equal to Mass when Charge is 0
	Intensity float64 // Probability or relative abundance
	Charge    int
}

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based position; -1 for N-term, len(seq) for C-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
	Delta    Delta  // Elemental change; nil for mass-only modifications
}

// Envelope is the theoretical isotopic envelope of one named molecule.
type Envelope struct {
	// Identity
	Title       string // Free-text name from the source library
	Formula     string // Source formula, if given
	Sequence    string // Peptide sequence, if the molecule is a peptide
	Charge      int
	Adduct      string // Precursor ion type such as "[M+H]+"; empty means protonation
	Composition Composition

	// Optional metadata
	Modifications []Modification
	ObservedMZ    float64 // Precursor m/z reported by the source library; 0 if absent
	Peaks         []Peak

	// Internal tracking
	SourceFile   string
	SourceFormat string // msp
}

// Validate checks that an envelope meets all requirements for writing.
func (e *Envelope) Validate() error {
	var errs []string

	if e.Name() == "" {
		errs = append(errs, "a title, sequence, or formula is required")
	}
	if e.Composition.TotalAtoms() == 0 {
		errs = append(errs, "composition is empty")
	}
	if err := e.Composition.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(e.Peaks) == 0 {
		errs = append(errs, "at least one peak is required")
	}

	for i, peak := range e.Peaks {
		if math.IsNaN(peak.MZ) || math.IsInf(peak.MZ, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid m/z", i))
		}
		if math.IsNaN(peak.Intensity) || math.IsInf(peak.Intensity, 0) {
			errs = append(errs, fmt.Sprintf("peak %d has invalid intensity", i))
		}
		if peak.MZ <= 0 {
			errs = append(errs, fmt.Sprintf("peak %d m/z must be positive", i))
		}
		if peak.Intensity < 0 {
			errs = append(errs, fmt.Sprintf("peak %d intensity must be non-negative", i))
		}
	}

	if !e.ArePeaksSorted() {
		errs = append(errs, "peaks must be sorted by m/z")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Envelope",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// ArePeaksSorted checks if peaks are sorted by m/z in ascending order.
func (e *Envelope) ArePeaksSorted() bool {
	for i := 1; i < len(e.Peaks); i++ {
		if e.Peaks[i].MZ < e.Peaks[i-1].MZ {
			return false
		}
	}
	return true
}

// SortPeaks sorts peaks by m/z in ascending order.
func (e *Envelope) SortPeaks() {
	sort.SliceStable(e.Peaks, func(i, j int) bool {
		return e.Peaks[i].MZ < e.Peaks[j].MZ
	})
}

// BasePeak returns the most intense peak.
func (e *Envelope) BasePeak() (Peak, bool) {
	if len(e.Peaks) == 0 {
		return Peak{}, false
	}
	best := e.Peaks[0]
	for _, p := range e.Peaks[1:] {
		if p.Intensity > best.Intensity {
			best = p
		}
	}
	return best, true
}

// TotalIntensity returns the sum of peak intensities.
func (e *Envelope) TotalIntensity() float64 {
	total := 0.0
	for _, p := range e.Peaks {
		total += p.Intensity
	}
	return total
}

// MonoisotopicMZ returns the m/z of the offset-0 peak.
func (e *Envelope) MonoisotopicMZ() (float64, bool) {
	for _, p := range e.Peaks {
		if p.Offset == 0 {
			return p.MZ, true
		}
	}
	return 0, false
}

// MassErrorPPM compares the library's observed precursor m/z with the
// theoretical offset-0 m/z.
func (e *Envelope) MassErrorPPM() (float64, bool) {
	mono, ok := e.MonoisotopicMZ()
	if !ok || e.ObservedMZ <= 0 || mono <= 0 {
		return 0, false
	}
	return (e.ObservedMZ - mono) / mono * 1e6, true
}

// ShiftMass moves every peak by a neutral mass delta.
func (e *Envelope) ShiftMass(delta float64) {
	for i := range e.Peaks {
		p := &e.Peaks[i]
		p.Mass += delta
		if p.Charge == 0 {
			p.MZ += delta
		} else {
			p.MZ += delta / math.Abs(float64(p.Charge))
		}
	}
}

// TotalModMass returns the sum of all modification masses.
func (e *Envelope) TotalModMass() float64 {
	total := 0.0
	for _, mod := range e.Modifications {
		total += mod.Mass
	}
	return total
}

// ModString returns a string representation of modifications in format "mass@pos;mass@pos;..."
func (e *Envelope) ModString() string {
	if len(e.Modifications) == 0 {
		return ""
	}

	var parts []string
	for _, mod := range e.Modifications {
		parts = append(parts, fmt.Sprintf("%.6f@%d", mod.Mass, mod.Position))
	}
	return strings.Join(parts, ";")
}

// Name returns the title, or "Sequence/Charge" for peptides, or the formula.
func (e *Envelope) Name() string {
	switch {
	case e.Title != "":
		return e.Title
	case e.Sequence != "":
		return fmt.Sprintf("%s/%d", e.Sequence, e.Charge)
	case e.Formula != "":
		return e.Formula
	}
	return ""
}
