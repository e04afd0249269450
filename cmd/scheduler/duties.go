package main

import (
	"fmt"

	"github.com/lakehouse-dev/scheduler/internal/catalog"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/spf13/cobra"
)

var exportFormat string

var dutiesCmd = &cobra.Command{
	Use:   "duties",
	Short: "Manage the duty catalog",
}

var dutiesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add duties from a YAML or TOML catalog",
	Long: `Add every duty in a catalog file. Duties whose name already exists are
skipped, so importing the same file twice is harmless.

Examples:
  scheduler duties import duties.yaml
  scheduler duties import duties.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runDutiesImport,
}

var dutiesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the active duties as a catalog",
	Args:  cobra.NoArgs,
	RunE:  runDutiesExport,
}

func init() {
	dutiesExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Output format: yaml or toml")

	dutiesCmd.AddCommand(dutiesImportCmd)
	dutiesCmd.AddCommand(dutiesExportCmd)
}

func runDutiesImport(cmd *cobra.Command, args []string) error {
	reqs, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}

	created, err := service.NewDutyService(database).Import(cmd.Context(), operator, reqs)
	if err != nil {
		return describeError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d duties (%d already present)\n", created, len(reqs), len(reqs)-created)
	return nil
}

func runDutiesExport(cmd *cobra.Command, args []string) error {
	format := catalog.Format(exportFormat)
	if format != catalog.FormatYAML && format != catalog.FormatTOML {
		return fmt.Errorf("unsupported format %q (want yaml or toml)", exportFormat)
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}

	duties, err := service.NewDutyService(database).ListActive(cmd.Context())
	if err != nil {
		return err
	}
	data, err := catalog.Encode(duties, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

