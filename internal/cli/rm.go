package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a saved reflection",
		Long:  "Delete a reflection locally and from the remote service. Another device that still holds it will bring it back on its next sync.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	id := args[0]

	a := openEngine(cmd)
	defer a.Close()

	ok, err := a.engine.Delete(cmd.Context(), id)
	if err != nil {
		a.exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"found":%t}`+"\n", id, ok)
}
