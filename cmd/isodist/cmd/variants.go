package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/isodist/pkg/core"
	"github.com/ChrisMcGann/isodist/pkg/distribution"
	"github.com/ChrisMcGann/isodist/pkg/isotope"
)

type variantsOptions struct {
	npeaks    int
	charge    int
	adduct    string
	normalize string
	format    string
	peptide   bool
	mods      string
}

type peakOutput struct {
	Offset    int     `json:"offset"`
	Mass      float64 `json:"mass"`
	MZ        float64 `json:"mz"`
	Intensity float64 `json:"intensity"`
}

type variantsOutput struct {
	Name        string       `json:"name"`
	Formula     string       `json:"formula"`
	Charge      int          `json:"charge"`
	Adduct      string       `json:"adduct,omitempty"`
	AverageMass float64      `json:"average_mass"`
	Centroid    float64      `json:"centroid"`
	Peaks       []peakOutput `json:"peaks"`
}

func newVariantsCmd(global *globalOptions) *cobra.Command {
	opts := &variantsOptions{}

	cmd := &cobra.Command{
		Use:   "variants FORMULA...",
		Short: "Compute isotopic peaks for formulas or peptides",
		Long: `Compute the isotopic distribution of each formula (or peptide sequence
with --peptide). Peaks are listed by neutron offset from the lightest isotopic
combination with their centroid mass, m/z, and intensity.

Examples:
  # Glucose, automatic peak count
  isodist variants C6H12O6

  # Five peaks of a doubly protonated peptide, base peak scaled to 1
  isodist variants --peptide MEPTIDEK --mods Oxidation@M1 -z 2 -n 5 --normalize max

  # Sodium adduct as JSON
  isodist variants C8H10N4O2 --adduct '[M+Na]+' --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariants(cmd, global, opts, args)
		},
	}

	cmd.Flags().IntVarP(&opts.npeaks, "peaks", "n", 0, "Number of peaks (0 = choose from the composition)")
	cmd.Flags().IntVarP(&opts.charge, "charge", "z", 0, "Charge state (0 = neutral masses)")
	cmd.Flags().StringVar(&opts.adduct, "adduct", "", "Precursor ion type, e.g. '[M+Na]+' (overrides --charge)")
	cmd.Flags().StringVar(&opts.normalize, "normalize", "none", "Intensity normalization: none, max, or sum")
	cmd.Flags().StringVar(&opts.format, "format", "tsv", "Output format: tsv or json")
	cmd.Flags().BoolVar(&opts.peptide, "peptide", false, "Treat arguments as peptide sequences")
	cmd.Flags().StringVar(&opts.mods, "mods", "", "Peptide modifications, e.g. 'Carbamidomethyl@C3;Oxidation@M8'")

	return cmd
}

func runVariants(cmd *cobra.Command, global *globalOptions, opts *variantsOptions, args []string) error {
	format := strings.ToLower(opts.format)
	if format != "tsv" && format != "json" {
		return fmt.Errorf("invalid format '%s', must be tsv or json", opts.format)
	}
	if opts.mods != "" && !opts.peptide {
		return fmt.Errorf("--mods requires --peptide")
	}

	log := global.logger(cmd)
	table, err := global.table()
	if err != nil {
		return err
	}
	builder, err := newEnvelopeBuilder(table, opts.npeaks, opts.normalize)
	if err != nil {
		return err
	}

	var modDB *core.ModDatabase
	if opts.peptide {
		modDB = modDatabase(log)
	}

	results := make([]variantsOutput, 0, len(args))
	for _, arg := range args {
		env := &core.Envelope{Charge: opts.charge, Adduct: opts.adduct}
		if opts.peptide {
			env.Sequence = strings.ToUpper(arg)
			env.Modifications, err = modDB.ParseModString(opts.mods, env.Sequence)
			if err != nil {
				return fmt.Errorf("peptide %s: %w", arg, err)
			}
		} else {
			env.Formula = arg
		}

		if err := builder.build(env); err != nil {
			return err
		}
		log.Debug("computed envelope", "name", env.Name(), "composition", env.Composition.String(), "peaks", len(env.Peaks))

		result, err := toVariantsOutput(arg, env, table)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	writeVariantsTSV(out, results)
	return nil
}

// toVariantsOutput reports the average mass of the whole composition and
// the intensity-weighted centroid of the returned peaks.
func toVariantsOutput(name string, env *core.Envelope, table *isotope.Table) (variantsOutput, error) {
	avg, err := env.Composition.AverageMass(table)
	if err != nil {
		return variantsOutput{}, fmt.Errorf("%s: %w", name, err)
	}

	out := variantsOutput{
		Name:        name,
		Formula:     env.Composition.String(),
		Charge:      env.Charge,
		Adduct:      env.Adduct,
		AverageMass: avg,
		Centroid:    distribution.Centroid(env.Peaks),
		Peaks:       make([]peakOutput, len(env.Peaks)),
	}
	for i, p := range env.Peaks {
		out.Peaks[i] = peakOutput{Offset: p.Offset, Mass: p.Mass, MZ: p.MZ, Intensity: p.Intensity}
	}
	return out, nil
}

func writeVariantsTSV(w io.Writer, results []variantsOutput) {
	printf(w, "name\tformula\tcharge\toffset\tmass\tmz\tintensity\n")
	for _, r := range results {
		for _, p := range r.Peaks {
			printf(w, "%s\t%s\t%d\t%d\t%.6f\t%.6f\t%.6g\n", r.Name, r.Formula, r.Charge, p.Offset, p.Mass, p.MZ, p.Intensity)
		}
	}
}
