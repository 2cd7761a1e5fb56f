package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List quote categories in the catalog",
		Run:   runCategories,
	}

	RootCmd.AddCommand(cmd)
}

type categoryCount struct {
	Category string `json:"category"`
	Quotes   int    `json:"quotes"`
}

func runCategories(cmd *cobra.Command, args []string) {
	a := openEngine(cmd)
	defer a.Close()

	counts := map[string]int{}
	for _, q := range a.engine.Catalog().All() {
		counts[q.Category]++
	}

	out := []categoryCount{}
	for _, c := range a.engine.Catalog().Categories() {
		out = append(out, categoryCount{Category: c, Quotes: counts[c]})
	}

	if textOutput() {
		for _, c := range out {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d\n", c.Category, c.Quotes)
		}
		return
	}
	printJSON(cmd, out)
}
