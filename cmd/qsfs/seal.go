package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.qsfs.dev/qsfs"
	"go.qsfs.dev/qsfs/internal/suite"
)

var sealCmd = &cobra.Command{
	Use:   "seal INPUT",
	Short: "Seal a file to one or more recipients",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeal,
}

var (
	sealRecipients   []string
	sealSignerPub    string
	sealSignerPriv   string
	sealOutput       string
	sealChunkSize    uint32
	sealSuite        string
	sealLegacy       bool
	sealAllowUnsigned bool
)

func init() {
	sealCmd.Flags().StringArrayVarP(&sealRecipients, "recipient", "r", nil, "path to a recipient key file (repeatable)")
	sealCmd.Flags().StringVar(&sealSignerPub, "signer-pub", "", "path to the signer's ML-DSA-87 public key")
	sealCmd.Flags().StringVar(&sealSignerPriv, "signer-key", "", "path to the signer's ML-DSA-87 private key")
	sealCmd.Flags().StringVarP(&sealOutput, "output", "o", "", "output path (default: stdout)")
	sealCmd.Flags().Uint32Var(&sealChunkSize, "chunk-size", qsfs.DefaultChunkSize, "plaintext chunk size in bytes")
	sealCmd.Flags().StringVar(&sealSuite, "suite", string(qsfs.DefaultSuite), "AEAD suite: aes256-gcm, aes256-gcm-siv, chacha20-poly1305")
	sealCmd.Flags().BoolVar(&sealLegacy, "legacy", false, "produce a v2.0 container (no per-file kdf_salt)")
	sealCmd.Flags().BoolVar(&sealAllowUnsigned, "allow-unsigned", false, "permit sealing without an ML-DSA-87 signer")
	rootCmd.AddCommand(sealCmd)
}

func runSeal(cmd *cobra.Command, args []string) error {
	if len(sealRecipients) == 0 {
		return fmt.Errorf("at least one --recipient is required")
	}

	recipients := make([]*qsfs.Recipient, 0, len(sealRecipients))
	for i, path := range sealRecipients {
		r, err := readRecipientFile(fmt.Sprintf("recipient-%d", i), path)
		if err != nil {
			return err
		}
		recipients = append(recipients, r)
	}

	var signer *qsfs.Signer
	if sealSignerPub != "" || sealSignerPriv != "" {
		var err error
		signer, err = readSignerFiles(sealSignerPub, sealSignerPriv)
		if err != nil {
			return err
		}
	}

	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	out := os.Stdout
	if sealOutput != "" {
		out, err = os.Create(sealOutput)
		if err != nil {
			return err
		}
		defer out.Close()
	}

	opts := qsfs.SealOptions{
		Recipients:    recipients,
		ChunkSize:     sealChunkSize,
		Suite:         suite.ID(sealSuite),
		Signer:        signer,
		AllowUnsigned: sealAllowUnsigned,
		Legacy:        sealLegacy,
	}
	slog.Debug("sealing", "input", args[0], "recipients", len(recipients), "suite", sealSuite, "legacy", sealLegacy)
	if err := qsfs.Seal(out, in, opts); err != nil {
		return err
	}
	slog.Info("sealed", "input", args[0])
	return nil
}
