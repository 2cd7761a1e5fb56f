package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "note <id> <text>",
		Short: "Replace a reflection's note",
		Args:  cobra.MinimumNArgs(2),
		Run:   runNote,
	}

	RootCmd.AddCommand(cmd)
}

func runNote(cmd *cobra.Command, args []string) {
	id := args[0]
	text := strings.Join(args[1:], " ")

	a := openEngine(cmd)
	defer a.Close()

	_, found := a.engine.Store().Get(id)
	changed, err := a.engine.EditNote(cmd.Context(), id, text)
	if err != nil {
		a.exitErr("note", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"found":%t,"changed":%t}`+"\n", id, found, changed)
}
