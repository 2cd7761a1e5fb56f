package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reflections as JSON",
		Long:  "Export saved reflections as a versioned JSON document. Filter by quote category with -c.",
		Run:   runExport,
	}

	cmd.Flags().StringP("category", "c", "", "Filter by quote category")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")

	a := openEngine(cmd)
	defer a.Close()

	if _, err := a.engine.Store().DeviceID(cmd.Context()); err != nil {
		a.exitErr("export", err)
	}
	printJSON(cmd, a.engine.Store().ExportAll(category))
}
