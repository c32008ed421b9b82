package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/isodist/pkg/core"
)

func newMassCmd(global *globalOptions) *cobra.Command {
	var peptide bool

	cmd := &cobra.Command{
		Use:   "mass FORMULA...",
		Short: "Print monoisotopic and average masses",
		Long: `Print the monoisotopic mass (most abundant isotope of each element) and
the average mass of each formula, or of each peptide with --peptide.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := global.table()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printf(out, "name\tformula\tmonoisotopic\taverage\n")
			for _, arg := range args {
				var comp core.Composition
				if peptide {
					comp, _, err = core.PeptideComposition(strings.ToUpper(arg), nil)
				} else {
					comp, err = core.ParseFormulaTable(arg, table)
				}
				if err != nil {
					return err
				}

				mono, err := comp.MassTable(table)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				avg, err := comp.AverageMass(table)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				printf(out, "%s\t%s\t%.6f\t%.6f\n", arg, comp.String(), mono, avg)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&peptide, "peptide", false, "Treat arguments as peptide sequences")

	return cmd
}
