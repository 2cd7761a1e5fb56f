package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/wisdom/internal/wisdom"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save <quote-id>",
		Short: "Save a reflection on a quote",
		Args:  cobra.ExactArgs(1),
		Run:   runSave,
	}

	cmd.Flags().StringP("note", "m", "", "Personal note")
	cmd.Flags().StringP("tags", "t", "", "Tags (comma-separated, at most 5)")
	cmd.Flags().String("context", "cli", "Where the reflection was saved from")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	note, _ := cmd.Flags().GetString("note")
	tags, _ := cmd.Flags().GetString("tags")
	origin, _ := cmd.Flags().GetString("context")

	a := openEngine(cmd)
	defer a.Close()

	r, err := a.engine.Save(cmd.Context(), wisdom.SaveParams{
		QuoteID:  args[0],
		UserNote: note,
		Tags:     splitList(tags),
		Context:  origin,
	})
	if err != nil {
		a.exitErr("save", err)
	}

	printJSON(cmd, r)
}
