package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tag <id>",
		Short: "Edit a reflection's tags",
		Long:  "Add, remove or replace tags. A reflection keeps at most 5 tags: --set keeps the first 5 and --add fails once the limit is reached.",
		Args:  cobra.ExactArgs(1),
		Run:   runTag,
	}

	cmd.Flags().StringP("add", "a", "", "Tag to add")
	cmd.Flags().StringP("remove", "r", "", "Tag to remove")
	cmd.Flags().String("set", "", "Replace all tags (comma-separated)")

	RootCmd.AddCommand(cmd)
}

func runTag(cmd *cobra.Command, args []string) {
	id := args[0]
	add, _ := cmd.Flags().GetString("add")
	remove, _ := cmd.Flags().GetString("remove")
	set, _ := cmd.Flags().GetString("set")

	if add == "" && remove == "" && !cmd.Flags().Changed("set") {
		exitErr("tag", errors.New("one of --add, --remove or --set is required"))
	}

	a := openEngine(cmd)
	defer a.Close()

	if _, ok := a.engine.Store().Get(id); !ok {
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"found":false}`+"\n", id)
		return
	}

	ctx := cmd.Context()
	var err error
	if cmd.Flags().Changed("set") {
		_, err = a.engine.SetTags(ctx, id, splitList(set))
	}
	if err == nil && add != "" {
		_, err = a.engine.AddTag(ctx, id, add)
	}
	if err == nil && remove != "" {
		_, err = a.engine.RemoveTag(ctx, id, remove)
	}
	if err != nil {
		a.exitErr("tag", err)
	}

	r, _ := a.engine.Store().Get(id)
	printJSON(cmd, r)
}
