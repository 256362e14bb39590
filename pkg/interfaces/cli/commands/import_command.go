package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/application/services/importer"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
	"github.com/vsinha/picktrack/pkg/interfaces/cli/output"
)

func (a *App) importCommand() *cobra.Command {
	var (
		manifestPath string
		execute      bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Explode the BOMs of a manifest into the line items of a new order",
		Long: `Reads an import manifest naming the order, its tools and one BOM export per
tool (.csv, .tsv, .txt or .xlsx), flattens each BOM, and merges the purchased
leaf parts into line items. Parts needed in the same quantity by every tool
become one shared line item; otherwise each quantity gets its own line item.

Without --execute only the preview is printed.`,
		Example: `  picktrack import --manifest orders/SO-1042/import.yaml
  picktrack import --manifest orders/SO-1042/import.yaml --execute`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			store, err := a.storeFor(ctx)
			if err != nil {
				return err
			}
			svc := importer.NewService(store, a.logger)

			start := time.Now()
			var result *dto.ImportResult
			if execute {
				result, err = svc.Execute(ctx, m)
			} else {
				result, err = svc.Preview(ctx, m)
			}
			if err != nil {
				return err
			}

			printer, err := output.New(cmd.OutOrStdout(), output.Config{
				Format:    a.format,
				OutputDir: a.outputDir,
				Verbose:   a.verbose,
				Elapsed:   time.Since(start),
			})
			if err != nil {
				return err
			}
			return printer.Import(result)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Import manifest (required)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Create the order (default is a dry-run preview)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
