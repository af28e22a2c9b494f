package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.qsfs.dev/qsfs"
	"go.qsfs.dev/qsfs/internal/trustdb"
)

var unsealCmd = &cobra.Command{
	Use:   "unseal INPUT",
	Short: "Unseal a QSFS container",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnseal,
}

var (
	unsealIdentities    []string
	unsealOutput        string
	unsealTrustAny      bool
	unsealAllowUnsigned bool
)

func init() {
	unsealCmd.Flags().StringArrayVarP(&unsealIdentities, "identity", "i", nil, "path to an identity key file (repeatable)")
	unsealCmd.Flags().StringVarP(&unsealOutput, "output", "o", "", "output path (default: stdout)")
	unsealCmd.Flags().BoolVar(&unsealTrustAny, "trust-any-signer", false, "skip the trust database check")
	unsealCmd.Flags().BoolVar(&unsealAllowUnsigned, "allow-unsigned", false, "accept a container with no signature")
	rootCmd.AddCommand(unsealCmd)
}

func runUnseal(cmd *cobra.Command, args []string) error {
	if len(unsealIdentities) == 0 {
		return fmt.Errorf("at least one --identity is required")
	}
	identities := make([]*qsfs.Identity, 0, len(unsealIdentities))
	for i, path := range unsealIdentities {
		id, err := readIdentityFile(fmt.Sprintf("identity-%d", i), path)
		if err != nil {
			return err
		}
		identities = append(identities, id)
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	out := os.Stdout
	if unsealOutput != "" {
		out, err = os.Create(unsealOutput)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	var store qsfs.SignerLookup
	if !unsealTrustAny {
		db, err := trustdb.Open(trustDBPath())
		if err != nil {
			return fmt.Errorf("opening trust database: %w", err)
		}
		defer db.Close()
		store = db
	}

	opts := qsfs.UnsealOptions{
		Identities:     identities,
		TrustStore:     store,
		TrustAnySigner: unsealTrustAny,
		AllowUnsigned:  unsealAllowUnsigned,
	}
	slog.Debug("unsealing", "input", args[0], "identities", len(identities))
	if err := qsfs.Unseal(out, in, opts); err != nil {
		if unsealOutput != "" {
			os.Remove(unsealOutput)
		}
		return err
	}
	slog.Info("unsealed", "input", args[0])
	return nil
}
