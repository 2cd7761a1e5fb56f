package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/wisdom/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reflections, newest first",
		Run:   runList,
	}

	cmd.Flags().StringP("category", "c", "", "Filter by quote category")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated, all must match)")
	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output reflection ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	tags, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	a := openEngine(cmd)
	defer a.Close()

	reflections := a.engine.Store().List(store.ListParams{
		Category: category,
		Tags:     splitList(tags),
		Limit:    limit,
	})

	if idsOnly {
		for _, r := range reflections {
			fmt.Fprintln(cmd.OutOrStdout(), r.ID)
		}
		return
	}
	if textOutput() {
		for _, r := range reflections {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %q\n", r.ID, r.SavedAt.Local().Format("2006-01-02"), r.Quote.Text)
			if r.UserNote != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", r.UserNote)
			}
		}
		return
	}

	if reflections == nil {
		printJSON(cmd, []any{})
		return
	}
	printJSON(cmd, reflections)
}
