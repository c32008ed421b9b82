// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

// customModsFile extends the modification database when present in the
// working directory.
const customModsFile = "unimod_custom.csv"

// globalOptions holds flags shared by every command
type globalOptions struct {
	isotopesCSV string
	verbose     bool
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "isodist",
		Short: "isodist - Theoretical isotopic distribution tool",
		Long: `isodist computes theoretical isotopic distributions from elemental
compositions and peptide sequences.

Features:
- Isotopic peaks (probabilities and centroid masses) for any formula
- Monoisotopic and average masses
- Batch annotation of MSP spectral libraries into SQLite databases
- Custom isotope tables and modification databases`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.isotopesCSV, "isotopes", "", "Path to an isotope table CSV (symbol,mass_number,mass,abundance)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newVariantsCmd(opts))
	rootCmd.AddCommand(newMassCmd(opts))
	rootCmd.AddCommand(newAnnotateCmd(opts))

	return rootCmd
}

// logger writes warnings and debug messages to the command's stderr
func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// table returns the isotope table selected by --isotopes
func (o *globalOptions) table() (*isotope.Table, error) {
	if o.isotopesCSV == "" {
		return isotope.Default(), nil
	}

	f, err := os.Open(o.isotopesCSV)
	if err != nil {
		return nil, fmt.Errorf("failed to open isotope table: %w", err)
	}
	defer f.Close()

	table, err := isotope.LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load isotope table %s: %w", o.isotopesCSV, err)
	}
	return table, nil
}

// modDatabase returns the default modifications extended by
// unimod_custom.csv if it exists
func modDatabase(log *slog.Logger) *core.ModDatabase {
	modDB := core.DefaultModDatabase()

	f, err := os.Open(customModsFile)
	if err != nil {
		return modDB
	}
	defer f.Close()

	if err := modDB.LoadFromCSV(f); err != nil {
		log.Warn("failed to load custom modifications", "file", customModsFile, "error", err)
	} else {
		log.Debug("loaded custom modifications", "file", customModsFile)
	}
	return modDB
}

// printf writes progress output, ignoring write errors like fmt.Printf
func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
