package cmd

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/distribution"
	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err = root.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVariants_TSV(t *testing.T) {
	stdout, _, err := execute(t, "variants", "C6H12O6")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4, "header plus the automatic three peaks")
	assert.Equal(t, "name\tformula\tcharge\toffset\tmass\tmz\tintensity", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "C6H12O6\tC6H12O6\t0\t0\t180.063388\t180.063388\t"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "C6H12O6\tC6H12O6\t0\t1\t"), lines[2])
}

func TestVariants_JSON(t *testing.T) {
	stdout, _, err := execute(t, "variants", "C6H12O6", "H2O", "-n", "4", "-z", "1", "--normalize", "max", "--format", "json")
	require.NoError(t, err)

	var results []variantsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 2)

	glucose := results[0]
	assert.Equal(t, "C6H12O6", glucose.Name)
	assert.Equal(t, 1, glucose.Charge)
	require.Len(t, glucose.Peaks, 4)
	assert.InDelta(t, 1.0, glucose.Peaks[0].Intensity, 1e-15)
	assert.InDelta(t, glucose.Peaks[0].Mass+core.ProtonMass, glucose.Peaks[0].MZ, 1e-9)
	assert.InDelta(t, 180.156, glucose.AverageMass, 5e-3)
	assert.Greater(t, glucose.Centroid, glucose.Peaks[0].Mass)
	assert.Less(t, glucose.Centroid, glucose.AverageMass)

	assert.Equal(t, "H2O", results[1].Formula)
}

func TestVariants_Adduct(t *testing.T) {
	stdout, _, err := execute(t, "variants", "C8H10N4O2", "--adduct", "[M+Na]+", "-n", "2", "--format", "json")
	require.NoError(t, err)

	var results []variantsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Charge)
	assert.Equal(t, "[M+Na]+", results[0].Adduct)
	assert.InDelta(t, 217.069596, results[0].Peaks[0].MZ, 1e-5)
}

func TestVariants_AdductAtomsShapeEnvelope(t *testing.T) {
	stdout, _, err := execute(t, "variants", "C6H12O6", "--adduct", "[M+Cl]-", "-n", "4", "--normalize", "max", "--format", "json")
	require.NoError(t, err)

	var results []variantsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)

	chloride := results[0]
	assert.Equal(t, "C6H12ClO6", chloride.Formula)
	assert.Equal(t, -1, chloride.Charge)
	require.Len(t, chloride.Peaks, 4)
	assert.InDelta(t, 215.032789, chloride.Peaks[0].MZ, 1e-5)
	// 37Cl puts about a third of the base peak at M+2
	assert.InDelta(t, 0.3343, chloride.Peaks[2].Intensity, 5e-3)
	assert.InDelta(t, 0.0228, chloride.Peaks[3].Intensity, 2e-3)

	_, _, err = execute(t, "variants", "NaCl", "--adduct", "[M-H]-")
	assert.ErrorIs(t, err, core.ErrInvalidComposition)
}

func TestVariants_Peptide(t *testing.T) {
	plain, _, err := execute(t, "variants", "--peptide", "MEPTIDEK", "-n", "1", "--format", "json")
	require.NoError(t, err)
	oxidized, _, err := execute(t, "variants", "--peptide", "meptidek", "--mods", "Oxidation@M1", "-n", "1", "--format", "json")
	require.NoError(t, err)

	var a, b []variantsOutput
	require.NoError(t, json.Unmarshal([]byte(plain), &a))
	require.NoError(t, json.Unmarshal([]byte(oxidized), &b))

	assert.InDelta(t, 15.994915, b[0].Peaks[0].Mass-a[0].Peaks[0].Mass, 1e-5)
	want, err := core.CalculateNeutralMass("MEPTIDEK", nil)
	require.NoError(t, err)
	assert.InDelta(t, want, a[0].Peaks[0].Mass, 1e-6)
}

func TestVariants_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		target error
		want   string
	}{
		{name: "malformed formula", args: []string{"variants", "C6h12"}, target: core.ErrMalformedFormula},
		{name: "unknown element", args: []string{"variants", "C6Xx2"}, target: isotope.ErrUnknownElement},
		{name: "negative peaks", args: []string{"variants", "C6", "-n", "-1"}, target: distribution.ErrInvalidTruncation},
		{name: "bad format", args: []string{"variants", "C6", "--format", "xml"}, want: "invalid format"},
		{name: "bad normalization", args: []string{"variants", "C6", "--normalize", "area"}, want: "invalid normalization"},
		{name: "mods without peptide", args: []string{"variants", "C6", "--mods", "Oxidation@M1"}, want: "--mods requires --peptide"},
		{name: "no arguments", args: []string{"variants"}, want: "requires at least 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestVariants_CustomIsotopes(t *testing.T) {
	csv := writeFile(t, "isotopes.csv", `symbol,mass_number,mass,abundance
X,10,10.0,0.5
X,11,11.0,0.5
`)

	stdout, _, err := execute(t, "variants", "X2", "-n", "3", "--isotopes", csv, "--format", "json")
	require.NoError(t, err)

	var results []variantsOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results[0].Peaks, 3)
	for i, want := range []float64{0.25, 0.5, 0.25} {
		assert.InDelta(t, want, results[0].Peaks[i].Intensity, 1e-12)
	}

	_, _, err = execute(t, "variants", "X2", "--isotopes", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestMass(t *testing.T) {
	stdout, _, err := execute(t, "mass", "C6H12O6", "--isotopes", "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 4)
	assert.Equal(t, "C6H12O6", fields[1])
	assert.Equal(t, "180.063388", fields[2])
	assert.True(t, strings.HasPrefix(fields[3], "180.15"), fields[3])

	stdout, _, err = execute(t, "mass", "--peptide", "AAA")
	require.NoError(t, err)
	assert.Contains(t, stdout, "AAA\tC9H17N3O4\t231.121906")
}

const annotateLibrary = `Name: AAACLDK/2
Comment: Parent=375.1800 Mods=1/3,C,Carbamidomethyl
Num peaks: 2
175.119	1000
246.156	400

Name: Bogus
Formula: C6Xx
Num peaks: 0

Name: PEPTIDE/2
Comment: Mods=1/2,P,NoSuchMod
Num peaks: 0

Name: Caffeine
Formula: C8H10N4O2
PrecursorMZ: 195.0877
Precursor_type: [M+H]+
Num Peaks: 1
138.066 999
`

func TestAnnotate(t *testing.T) {
	input := writeFile(t, "library.msp", annotateLibrary)
	offsets := writeFile(t, "offsets.csv", "Name,massOffset\nCaffeine,1.0\n")
	dir := t.TempDir()
	output := filepath.Join(dir, "envelopes.db")
	metricsFile := filepath.Join(dir, "isodist.prom")

	stdout, stderr, err := execute(t, "annotate",
		"--in", input, "--out", output,
		"--peaks", "5", "--top-n", "3", "--cutoff", "1",
		"--threads", "2", "--chunk-size", "2",
		"--mass-offset", offsets,
		"--metrics-file", metricsFile,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Processed: 2 entries")
	assert.Contains(t, stdout, "Skipped: 2 entries")
	assert.Contains(t, stdout, "Loaded 1 mass offset mappings")
	assert.Contains(t, stderr, "skipping entry")
	assert.Contains(t, stderr, "NoSuchMod")

	db, err := sql.Open("sqlite3", output)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT Name, NumPeaks, MonoisotopicMZ FROM EnvelopeTable ORDER BY EnvelopeId`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		name     string
		numPeaks int
		monoMZ   float64
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.name, &r.numPeaks, &r.monoMZ))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "AAACLDK/2", got[0].name)
	assert.Equal(t, 3, got[0].numPeaks)
	peptideMZ, err := core.CalculatePeptideMass("AAACLDK", 2, []core.Modification{{Mass: 57.021464, Position: 3}})
	require.NoError(t, err)
	assert.InDelta(t, peptideMZ, got[0].monoMZ, 1e-5)

	assert.Equal(t, "Caffeine", got[1].name)
	assert.InDelta(t, 195.087652+1.0, got[1].monoMZ, 1e-5)

	metricsText, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `isodist_entries_total{status="skipped"} 2`)
	assert.Contains(t, string(metricsText), `isodist_entries_total{status="written"} 2`)
}

const annotateSpectraST = `### SpectraST library
Name: AAAC[160]LDK/2
PrecursorMZ: 375.1800
Comment: Parent=375.180 Mods=1/3,C,Carbamidomethyl
NumPeaks: 1
175.119	1000	y1/0.00

Name: AC[160]K/1
Comment: Parent=350.1
NumPeaks: 0
`

func TestAnnotate_SpectraST(t *testing.T) {
	input := writeFile(t, "consensus.sptxt", annotateSpectraST)
	output := filepath.Join(t.TempDir(), "envelopes.db")

	stdout, stderr, err := execute(t, "annotate", "--in", input, "--out", output, "--peaks", "3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Processed: 1 entries")
	assert.Contains(t, stdout, "Skipped: 1 entries")
	assert.Contains(t, stderr, "without a Mods comment field")

	db, err := sql.Open("sqlite3", output)
	require.NoError(t, err)
	defer db.Close()

	var name, format string
	var numPeaks int
	var monoMZ float64
	row := db.QueryRow(`SELECT Name, SourceFormat, NumPeaks, MonoisotopicMZ FROM EnvelopeTable`)
	require.NoError(t, row.Scan(&name, &format, &numPeaks, &monoMZ))
	assert.Equal(t, "AAACLDK/2", name)
	assert.Equal(t, "sptxt", format)
	assert.Equal(t, 3, numPeaks)

	want, err := core.CalculatePeptideMass("AAACLDK", 2, []core.Modification{{Mass: 57.021464, Position: 3}})
	require.NoError(t, err)
	assert.InDelta(t, want, monoMZ, 1e-5)
}

func TestAnnotate_Errors(t *testing.T) {
	input := writeFile(t, "library.msp", annotateLibrary)
	output := filepath.Join(t.TempDir(), "out.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"annotate", "--in", filepath.Join(t.TempDir(), "nope.msp"), "--out", output}, "does not exist"},
		{"wrong extension", []string{"annotate", "--in", writeFile(t, "library.txt", ""), "--out", output}, "expected .msp"},
		{"zero threads", []string{"annotate", "--in", input, "--out", output, "--threads", "0"}, "--threads"},
		{"required flags", []string{"annotate"}, "required flag"},
		{"bad offsets", []string{"annotate", "--in", input, "--out", output, "--mass-offset", writeFile(t, "o.csv", "Name,massOffset\nX,abc\n")}, "invalid mass offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
