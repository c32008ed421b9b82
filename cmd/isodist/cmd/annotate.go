package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/isodist/internal/metrics"
	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/filter"
	"github.com/ChrisMcGann/isodist/pkg/reader/msp"
	"github.com/ChrisMcGann/isodist/pkg/reader/sptxt"
	"github.com/ChrisMcGann/isodist/pkg/writer/sqlite"
)

type annotateOptions struct {
	inputFile     string
	outputFile    string
	npeaks        int
	normalize     string
	topN          int
	cutoffPercent float64
	minIntensity  float64
	massOffsetCSV string
	threads       int
	chunkSize     int
	metricsFile   string
}

func newAnnotateCmd(global *globalOptions) *cobra.Command {
	opts := &annotateOptions{}

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Compute isotopic envelopes for every entry of an MSP or SPTXT library",
		Long: `Read an MSP or SPTXT (SpectraST) spectral library and write the theoretical
isotopic envelope of every entry to a SQLite database. Peptide entries
("Name: SEQUENCE/CHARGE") are built from their sequence and modifications;
small-molecule MSP entries from their Formula and Precursor_type. Entries that
cannot be computed are skipped with a warning.

Examples:
  # Annotate with default settings
  isodist annotate --in library.msp --out envelopes.db

  # SpectraST libraries are read the same way
  isodist annotate --in consensus.sptxt --out envelopes.db

  # Keep the 4 most intense peaks above 1% of the base peak, scaled to the base peak
  isodist annotate --in library.msp --out envelopes.db --top-n 4 --cutoff 1 --normalize max

  # Export run metrics for the node exporter textfile collector
  isodist annotate --in library.msp --out envelopes.db --metrics-file /var/lib/node_exporter/isodist.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.inputFile, "in", "i", "", "Input library path, .msp or .sptxt (required)")
	cmd.Flags().StringVarP(&opts.outputFile, "out", "o", "", "Output database file (required)")
	cmd.Flags().IntVarP(&opts.npeaks, "peaks", "n", 0, "Number of isotopic peaks per entry (0 = choose from the composition)")
	cmd.Flags().StringVar(&opts.normalize, "normalize", "max", "Intensity normalization: none, max, or sum")
	cmd.Flags().IntVar(&opts.topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	cmd.Flags().Float64Var(&opts.cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	cmd.Flags().Float64Var(&opts.minIntensity, "min-intensity", 0, "Absolute intensity floor (0 = keep all non-zero peaks)")
	cmd.Flags().StringVar(&opts.massOffsetCSV, "mass-offset", "", "Path to mass offset CSV file (Name,massOffset)")
	cmd.Flags().IntVar(&opts.threads, "threads", runtime.NumCPU(), "Number of worker goroutines")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 10000, "Chunk size for batch processing")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")

	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("out")

	return cmd
}

// libraryReader streams envelope skeletons from a spectral library
type libraryReader interface {
	Next() bool
	Envelope() *core.Envelope
	EntryErr() error
	Err() error
}

// newLibraryReader picks the reader for the input file's extension
func newLibraryReader(path string, r io.Reader, modDB *core.ModDatabase) (libraryReader, error) {
	name := filepath.Base(path)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".msp":
		return msp.NewReader(r, modDB, name), nil
	case ".sptxt":
		return sptxt.NewReader(r, modDB, name), nil
	default:
		return nil, fmt.Errorf("unsupported input extension '%s', expected .msp or .sptxt", ext)
	}
}

// entry is one library entry and the outcome of computing its envelope
type entry struct {
	env *core.Envelope
	err error
}

func runAnnotate(cmd *cobra.Command, global *globalOptions, opts *annotateOptions) error {
	if opts.threads < 1 {
		return fmt.Errorf("--threads must be at least 1, got %d", opts.threads)
	}
	if opts.chunkSize < 1 {
		return fmt.Errorf("--chunk-size must be at least 1, got %d", opts.chunkSize)
	}

	// Validate input file exists
	if _, err := os.Stat(opts.inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", opts.inputFile)
	}

	out := cmd.OutOrStdout()
	log := global.logger(cmd)

	table, err := global.table()
	if err != nil {
		return err
	}
	builder, err := newEnvelopeBuilder(table, opts.npeaks, opts.normalize)
	if err != nil {
		return err
	}
	builder.filter = &filter.Config{
		TopN:            opts.topN,
		IntensityCutoff: opts.cutoffPercent,
		MinIntensity:    opts.minIntensity,
	}

	printf(out, "Annotating %s to %s...\n", opts.inputFile, opts.outputFile)
	printf(out, "Normalization: %s\n", builder.normalize)
	if opts.npeaks > 0 {
		printf(out, "Peaks per entry: %d\n", opts.npeaks)
	}
	if builder.filter.Active() {
		printf(out, "Filters: top-n=%d cutoff=%.1f%% min-intensity=%g\n", opts.topN, opts.cutoffPercent, opts.minIntensity)
	}

	// Load mass offset mapping if provided
	massOffsetMap := make(map[string]float64)
	if opts.massOffsetCSV != "" {
		massOffsetMap, err = loadMassOffsetCSV(opts.massOffsetCSV)
		if err != nil {
			return fmt.Errorf("failed to load mass offset CSV: %w", err)
		}
		printf(out, "Loaded %d mass offset mappings\n", len(massOffsetMap))
	}

	inFile, err := os.Open(opts.inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer inFile.Close()

	reader, err := newLibraryReader(opts.inputFile, inFile, modDatabase(log))
	if err != nil {
		return err
	}

	writer, err := sqlite.NewWriter(opts.outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output database: %w", err)
	}
	defer writer.Close()

	run := &annotateRun{
		builder:     builder,
		writer:      writer,
		recorder:    metrics.New(),
		log:         log,
		out:         out,
		threads:     opts.threads,
		massOffsets: massOffsetMap,
	}

	chunk := make([]entry, 0, opts.chunkSize)
	for reader.Next() {
		chunk = append(chunk, entry{env: reader.Envelope(), err: reader.EntryErr()})
		if len(chunk) == opts.chunkSize {
			if err := run.processChunk(chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading input file: %w", err)
	}
	if err := run.processChunk(chunk); err != nil {
		return err
	}

	// Finalize database
	writer.SetDescription(fmt.Sprintf("isotopic envelopes of %s", filepath.Base(opts.inputFile)))
	if err := writer.Finalize(); err != nil {
		return fmt.Errorf("failed to finalize database: %w", err)
	}

	if opts.metricsFile != "" {
		if err := run.recorder.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}

	printf(out, "\nAnnotation complete!\n")
	printf(out, "Processed: %d entries\n", run.written)
	if run.skipped > 0 {
		printf(out, "Skipped: %d entries (see warnings)\n", run.skipped)
	}
	printf(out, "Output: %s\n", opts.outputFile)

	return nil
}

// annotateRun holds the state of one annotate invocation
type annotateRun struct {
	builder     *envelopeBuilder
	writer      *sqlite.Writer
	recorder    *metrics.Recorder
	log         *slog.Logger
	out         io.Writer
	threads     int
	massOffsets map[string]float64

	written int
	skipped int
}

// processChunk computes the chunk's envelopes concurrently, then writes
// them in input order
func (r *annotateRun) processChunk(chunk []entry) error {
	if len(chunk) == 0 {
		return nil
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.threads)
	for i := range chunk {
		e := &chunk[i]
		if e.err != nil {
			continue
		}
		g.Go(func() error {
			e.err = r.compute(e.env)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, e := range chunk {
		if e.err != nil {
			r.log.Warn("skipping entry", "name", e.env.Name(), "error", e.err)
			r.recorder.Entry(metrics.StatusSkipped)
			r.skipped++
			continue
		}

		if _, err := r.writer.WriteEnvelope(e.env); err != nil {
			return fmt.Errorf("failed to write envelope %s: %w", e.env.Name(), err)
		}
		r.recorder.Entry(metrics.StatusWritten)

		r.written++
		if r.written%1000 == 0 {
			printf(r.out, "Processed %d entries...\n", r.written)
		}
	}

	r.recorder.Chunk(time.Since(start))
	return nil
}

// compute builds, offsets, and validates one envelope
func (r *annotateRun) compute(env *core.Envelope) error {
	start := time.Now()
	if err := r.builder.build(env); err != nil {
		return err
	}

	// Apply mass offset if configured
	if offset, ok := r.massOffsets[env.Name()]; ok {
		env.ShiftMass(offset)
	}

	if err := env.Validate(); err != nil {
		return err
	}
	r.recorder.Envelope(time.Since(start), len(env.Peaks))
	return nil
}

func loadMassOffsetCSV(path string) (map[string]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := make(map[string]float64)
	scanner := bufio.NewScanner(file)

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
			return nil, fmt.Errorf("line %d: expected 2 fields (Name,massOffset), got %d", lineNum, len(parts))
		}

		name := strings.TrimSpace(parts[0])
		offsetStr := strings.TrimSpace(parts[1])

		offset, err := strconv.ParseFloat(offsetStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid mass offset value '%s': %w", lineNum, offsetStr, err)
		}

		result[name] = offset
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}

	return result, nil
}
