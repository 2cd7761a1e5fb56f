package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the device id and the id records sync under",
		Run:   runWhoami,
	}

	RootCmd.AddCommand(cmd)
}

type identity struct {
	DeviceID         string `json:"device_id"`
	UserID           string `json:"user_id"`
	RemoteConfigured bool   `json:"remote_configured"`
	Error            string `json:"error,omitempty"`
}

func runWhoami(cmd *cobra.Command, args []string) {
	a := openEngine(cmd)
	defer a.Close()

	ctx := cmd.Context()
	device, err := a.engine.Store().DeviceID(ctx)
	if err != nil {
		a.exitErr("device id", err)
	}

	out := identity{DeviceID: device, RemoteConfigured: a.engine.Remote().Available()}
	user, err := a.engine.Remote().ResolveUserID(ctx)
	if err != nil {
		out.Error = err.Error()
	}
	out.UserID = user
	printJSON(cmd, out)
}
