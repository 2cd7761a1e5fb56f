package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Long:  "Without flags, print the stored preferences. Flags update them.",
		Run:   runPrefs,
	}

	cmd.Flags().Int("interval", 0, "Quote rotation interval in seconds")
	cmd.Flags().StringSlice("enable", nil, "Feature toggles to turn on")
	cmd.Flags().StringSlice("disable", nil, "Feature toggles to turn off")

	RootCmd.AddCommand(cmd)
}

func runPrefs(cmd *cobra.Command, args []string) {
	interval, _ := cmd.Flags().GetInt("interval")
	enable, _ := cmd.Flags().GetStringSlice("enable")
	disable, _ := cmd.Flags().GetStringSlice("disable")

	a := openEngine(cmd)
	defer a.Close()

	st := a.engine.Store()
	prefs := st.Preferences()

	changed := false
	if cmd.Flags().Changed("interval") {
		if interval <= 0 {
			a.exitErr("prefs", errors.New("--interval must be positive"))
		}
		prefs.RotationIntervalSeconds = interval
		changed = true
	}
	if len(enable)+len(disable) > 0 && prefs.Enabled == nil {
		prefs.Enabled = map[string]bool{}
	}
	for _, k := range enable {
		prefs.Enabled[strings.TrimSpace(k)] = true
		changed = true
	}
	for _, k := range disable {
		prefs.Enabled[strings.TrimSpace(k)] = false
		changed = true
	}

	if changed {
		if err := st.SetPreferences(cmd.Context(), prefs); err != nil {
			a.exitErr("prefs", err)
		}
	}
	printJSON(cmd, prefs)
}
