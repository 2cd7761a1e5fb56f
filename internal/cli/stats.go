package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/wisdom/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type statsOutput struct {
	*store.Stats
	CatalogSize      int  `json:"catalog_size"`
	RemoteConfigured bool `json:"remote_configured"`
}

func runStats(cmd *cobra.Command, args []string) {
	a := openEngine(cmd)
	defer a.Close()

	printJSON(cmd, statsOutput{
		Stats:            a.engine.Store().Stats(),
		CatalogSize:      a.engine.Catalog().Len(),
		RemoteConfigured: a.engine.Remote().Available(),
	})
}
