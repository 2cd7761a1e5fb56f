package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Serve the next quote",
		Long:  "Pick a weighted-random quote that was not served recently. Category filters are advisory.",
		Run:   runQuote,
	}

	cmd.Flags().StringP("category", "c", "", "Preferred categories (comma-separated)")
	cmd.Flags().String("lang", "", "Language for the quote text")

	RootCmd.AddCommand(cmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	categories, _ := cmd.Flags().GetString("category")
	lang, _ := cmd.Flags().GetString("lang")

	a := openEngine(cmd)
	defer a.Close()

	q, err := a.engine.NextQuote(cmd.Context(), splitList(categories))
	if err != nil {
		a.exitErr("quote", err)
	}

	text := q.TextFor(lang)
	if textOutput() {
		fmt.Fprintf(cmd.OutOrStdout(), "%q\n", text)
		if q.Author != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", q.Author)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", q.Category, q.ID)
		return
	}

	q.Text = text
	q.Translations = nil
	printJSON(cmd, q)
}
