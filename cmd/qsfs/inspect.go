package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.qsfs.dev/qsfs/internal/inspect"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect INPUT",
	Short: "Report a container's header metadata without unsealing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output machine-readable JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	var fileSize int64 = -1
	if fi, err := f.Stat(); err == nil {
		fileSize = fi.Size()
	}

	meta, err := inspect.Inspect(f, fileSize)
	if err != nil {
		return err
	}

	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	fmt.Printf("version:    %s\n", meta.Version)
	fmt.Printf("hybrid:     %t\n", meta.Hybrid)
	fmt.Printf("suite:      %s\n", meta.Suite)
	fmt.Printf("chunk_size: %d\n", meta.ChunkSize)
	fmt.Printf("recipients: %d\n", meta.RecipientCount)
	fmt.Printf("signed:     %t\n", meta.Signed)
	if meta.Signed {
		fmt.Printf("signer_id:  %s\n", meta.SignerID)
	}
	fmt.Printf("header_len: %d bytes\n", meta.Sizes.Header)
	return nil
}
