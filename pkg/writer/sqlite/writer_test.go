package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

func testEnvelope() *core.Envelope {
	return &core.Envelope{
		Sequence:    "AAA",
		Charge:      1,
		Composition: core.Composition{"C": 9, "H": 17, "N": 3, "O": 4},
		ObservedMZ:  232.1300,
		Modifications: []core.Modification{
			{Mass: 15.994915, Position: 1, Name: "Oxidation"},
		},
		Peaks: []core.Peak{
			{Offset: 1, Mass: 232.1252, MZ: 233.1325, Intensity: 0.1, Charge: 1},
			{Offset: 0, Mass: 231.1219, MZ: 232.1292, Intensity: 0.88, Charge: 1},
		},
		SourceFile:   "lib.msp",
		SourceFormat: "msp",
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")

	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()
	w.SetDescription("test run")

	id, err := w.WriteEnvelope(testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = w.WriteEnvelope(&core.Envelope{
		Title:       "Caffeine",
		Composition: core.Composition{"C": 8, "H": 10, "N": 4, "O": 2},
		Adduct:      "[M+H]+",
		Charge:      1,
		Peaks:       []core.Peak{{Offset: 0, Mass: 194.0804, MZ: 195.0877, Intensity: 1, Charge: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, 2, w.Count())

	require.NoError(t, w.Finalize())
	require.NoError(t, w.Finalize(), "Finalize is idempotent")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		name, formula, mods, ionType string
		charge, numPeaks             int
		monoMZ                       float64
		ppm                          sql.NullFloat64
		blobMZ, blobIntensity        []byte
	)
	err = db.QueryRow(`SELECT Name, Formula, Modifications, PrecursorIonType, Charge, NumPeaks,
		MonoisotopicMZ, MassErrorPPM, blobMass, blobIntensity FROM EnvelopeTable WHERE EnvelopeId = 1`).
		Scan(&name, &formula, &mods, &ionType, &charge, &numPeaks, &monoMZ, &ppm, &blobMZ, &blobIntensity)
	require.NoError(t, err)

	assert.Equal(t, "AAA/1", name)
	assert.Equal(t, "C9H17N3O4", formula)
	assert.Equal(t, "15.994915@1", mods)
	assert.Equal(t, "", ionType)
	assert.Equal(t, 1, charge)
	assert.Equal(t, 2, numPeaks)
	assert.InDelta(t, 232.1292, monoMZ, 1e-12)
	require.True(t, ppm.Valid)
	assert.InDelta(t, (232.1300-232.1292)/232.1292*1e6, ppm.Float64, 1e-9)

	mzs, err := DecodeFloat64Blob(blobMZ)
	require.NoError(t, err)
	assert.Equal(t, []float64{232.1292, 233.1325}, mzs, "peaks are written sorted by m/z")
	intensities, err := DecodeFloat64Blob(blobIntensity)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.88, 0.1}, intensities)

	var observed sql.NullFloat64
	err = db.QueryRow(`SELECT PrecursorIonType, ObservedMZ FROM EnvelopeTable WHERE EnvelopeId = 2`).Scan(&ionType, &observed)
	require.NoError(t, err)
	assert.Equal(t, "[M+H]+", ionType)
	assert.False(t, observed.Valid)

	var peakRows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM PeakTable`).Scan(&peakRows))
	assert.Equal(t, 3, peakRows)

	var intensity float64
	require.NoError(t, db.QueryRow(`SELECT Intensity FROM PeakTable WHERE EnvelopeId = 1 AND IsotopeOffset = 1`).Scan(&intensity))
	assert.Equal(t, 0.1, intensity)

	var envelopes int
	var description string
	require.NoError(t, db.QueryRow(`SELECT NoofEnvelopes, Description FROM HeaderTable`).Scan(&envelopes, &description))
	assert.Equal(t, 2, envelopes)
	assert.Equal(t, "test run", description)
}

func TestWriter_CloseWithoutFinalizeDiscardsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.db")

	w, err := NewWriter(path)
	require.NoError(t, err)
	_, err = w.WriteEnvelope(testEnvelope())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.WriteEnvelope(testEnvelope())
	assert.Error(t, err)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM EnvelopeTable`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDecodeFloat64Blob(t *testing.T) {
	values, err := DecodeFloat64Blob(encodePeaksFloat64([]core.Peak{{MZ: 1.5}, {MZ: -2}}, true))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2}, values)

	_, err = DecodeFloat64Blob(make([]byte, 7))
	assert.Error(t, err)
}
