package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/wisdom/internal/model"
	"github.com/rcliao/wisdom/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import reflections from JSON",
		Long: "Import reflections from a file or stdin. Accepts the document produced by export or a bare array. " +
			"Records merge by id and the most recent edit wins, so importing the same file twice is harmless.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			exitErr("open", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		exitErr("read", err)
	}

	records, err := decodeImport(data)
	if err != nil {
		exitErr("parse json", err)
	}

	a := openEngine(cmd)
	defer a.Close()

	imported, err := a.engine.Import(cmd.Context(), records)
	if err != nil {
		a.exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}

func decodeImport(data []byte) ([]model.Reflection, error) {
	var doc store.Export
	if err := json.Unmarshal(data, &doc); err == nil && doc.Version > 0 {
		if doc.Version > store.ExportVersion {
			return nil, fmt.Errorf("unsupported export version %d", doc.Version)
		}
		return doc.Reflections, nil
	}
	var records []model.Reflection
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
