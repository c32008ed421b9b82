// Package sqlite provides SQLite database writing for isotopic envelopes
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// schemaVersion is stored in HeaderTable.version
	schemaVersion = 1
)

// Writer handles writing envelopes to SQLite database files. All rows are
// written in one transaction that Finalize commits.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	envelopeStmt *sql.Stmt
	peakStmt     *sql.Stmt
	envelopeID   int
	description  string
	finalized    bool
}

// NewWriter creates a new SQLite writer
func NewWriter(outputPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		envelopeID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// SetDescription sets the HeaderTable description written by Finalize.
func (w *Writer) SetDescription(description string) {
	w.description = description
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS EnvelopeTable (
		EnvelopeId INTEGER PRIMARY KEY,
		Name TEXT,
		Formula TEXT,
		Sequence TEXT,
		Modifications TEXT,
		Charge INTEGER,
		PrecursorIonType TEXT,
		MonoisotopicMass DOUBLE,
		MonoisotopicMZ DOUBLE,
		ObservedMZ DOUBLE,
		MassErrorPPM DOUBLE,
		NumPeaks INTEGER,
		blobMass BLOB,
		blobIntensity BLOB,
		SourceFile TEXT,
		SourceFormat TEXT
	);

	CREATE TABLE IF NOT EXISTS PeakTable (
		EnvelopeId INTEGER REFERENCES EnvelopeTable(EnvelopeId),
		IsotopeOffset INTEGER,
		Mass DOUBLE,
		MZ DOUBLE,
		Intensity DOUBLE,
		PRIMARY KEY (EnvelopeId, IsotopeOffset)
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT,
		NoofEnvelopes INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements opens the write transaction and prepares SQL statements
// for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.tx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	w.envelopeStmt, err = w.tx.Prepare(`
		INSERT INTO EnvelopeTable (
			EnvelopeId, Name, Formula, Sequence, Modifications, Charge,
			PrecursorIonType, MonoisotopicMass, MonoisotopicMZ, ObservedMZ,
			MassErrorPPM, NumPeaks, blobMass, blobIntensity, SourceFile,
			SourceFormat
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("failed to prepare envelope statement: %w", err)
	}

	w.peakStmt, err = w.tx.Prepare(`
		INSERT INTO PeakTable (EnvelopeId, IsotopeOffset, Mass, MZ, Intensity)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		return fmt.Errorf("failed to prepare peak statement: %w", err)
	}

	return nil
}

// WriteEnvelope writes a single envelope to the database and returns its id
func (w *Writer) WriteEnvelope(env *core.Envelope) (int, error) {
	if w.finalized {
		return 0, fmt.Errorf("writer for %s is finalized", w.outputPath)
	}

	// Ensure peaks are sorted
	if !env.ArePeaksSorted() {
		env.SortPeaks()
	}

	formula := env.Formula
	if formula == "" {
		formula = env.Composition.String()
	}

	// Optional columns are NULL when unknown
	var monoMass, monoMZ, observed, ppm interface{}
	for _, p := range env.Peaks {
		if p.Offset == 0 {
			monoMass, monoMZ = p.Mass, p.MZ
			break
		}
	}
	if env.ObservedMZ > 0 {
		observed = env.ObservedMZ
	}
	if v, ok := env.MassErrorPPM(); ok {
		ppm = v
	}

	// Encode peaks as binary blobs (little-endian float64)
	mzBlob := encodePeaksFloat64(env.Peaks, true)   // m/z values
	intBlob := encodePeaksFloat64(env.Peaks, false) // intensity values

	_, err := w.envelopeStmt.Exec(
		w.envelopeID,     // EnvelopeId
		env.Name(),       // Name
		formula,          // Formula
		env.Sequence,     // Sequence
		env.ModString(),  // Modifications
		env.Charge,       // Charge
		env.Adduct,       // PrecursorIonType
		monoMass,         // MonoisotopicMass
		monoMZ,           // MonoisotopicMZ
		observed,         // ObservedMZ
		ppm,              // MassErrorPPM
		len(env.Peaks),   // NumPeaks
		mzBlob,           // blobMass
		intBlob,          // blobIntensity
		env.SourceFile,   // SourceFile
		env.SourceFormat, // SourceFormat
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert envelope: %w", err)
	}

	for _, p := range env.Peaks {
		if _, err := w.peakStmt.Exec(w.envelopeID, p.Offset, p.Mass, p.MZ, p.Intensity); err != nil {
			return 0, fmt.Errorf("failed to insert peak %d of %s: %w", p.Offset, env.Name(), err)
		}
	}

	id := w.envelopeID
	w.envelopeID++
	return id, nil
}

// Count returns the number of envelopes written so far
func (w *Writer) Count() int {
	return w.envelopeID - 1
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// DecodeFloat64Blob decodes a little-endian float64 blob written by the
// writer
func DecodeFloat64Blob(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(blob))
	}
	values := make([]float64, len(blob)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return values, nil
}

// Finalize writes the header table, commits, and closes the database. It
// is safe to call more than once.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	now := time.Now().Format(headerDateFormat)
	_, err := w.tx.Exec(`
		INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description, NoofEnvelopes)
		VALUES (?, ?, ?, ?, ?)
	`, schemaVersion, now, now, w.description, w.Count())
	if err != nil {
		w.abort()
		return fmt.Errorf("failed to insert header: %w", err)
	}

	// Close prepared statements
	w.envelopeStmt.Close()
	w.peakStmt.Close()

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return fmt.Errorf("failed to commit: %w", err)
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close discards uncommitted rows and closes the database unless Finalize
// already ran. Deferring Close after a successful Finalize is a no-op.
func (w *Writer) Close() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	return w.abort()
}

func (w *Writer) abort() error {
	w.envelopeStmt.Close()
	w.peakStmt.Close()
	w.tx.Rollback()
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
