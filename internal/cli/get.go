package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a saved reflection",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	a := openEngine(cmd)
	defer a.Close()

	r, ok := a.engine.Store().Get(args[0])
	if !ok {
		a.exitErr("get", fmt.Errorf("reflection %s not found", args[0]))
	}

	printJSON(cmd, r)
}
