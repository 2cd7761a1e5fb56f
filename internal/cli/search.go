package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/wisdom/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search saved reflections",
		Long:  "Case-insensitive search over quote text, translations, author, notes and tags.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("category", "c", "", "Filter by quote category")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")

	a := openEngine(cmd)
	defer a.Close()

	results := a.engine.Store().Search(store.SearchParams{
		Query:    strings.Join(args, " "),
		Category: category,
		Limit:    limit,
	})
	if results == nil {
		results = []store.SearchResult{}
	}

	printJSON(cmd, results)
}
