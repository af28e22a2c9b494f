package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"go.qsfs.dev/qsfs/internal/trustdb"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage the host-local signer trust database",
}

var trustAddCmd = &cobra.Command{
	Use:   "add SIGNER_ID",
	Short: "Trust a signer_id (hex-encoded SHA-256 of its ML-DSA-87 public key)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustAdd,
}

var trustRemoveCmd = &cobra.Command{
	Use:   "remove SIGNER_ID",
	Short: "Remove a signer_id from the trust database",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustRemove,
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted signer_ids",
	Args:  cobra.NoArgs,
	RunE:  runTrustList,
}

var trustNote string

func init() {
	trustAddCmd.Flags().StringVar(&trustNote, "note", "", "operator note for this signer")
	trustCmd.AddCommand(trustAddCmd, trustRemoveCmd, trustListCmd)
	rootCmd.AddCommand(trustCmd)
}

func parseSignerID(s string) ([32]byte, error) {
	var id [32]byte
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return id, fmt.Errorf("signer_id must be 64 hex characters (32 bytes), got %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func runTrustAdd(cmd *cobra.Command, args []string) error {
	id, err := parseSignerID(args[0])
	if err != nil {
		return err
	}
	db, err := trustdb.Open(trustDBPath())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Add(id, trustNote)
}

func runTrustRemove(cmd *cobra.Command, args []string) error {
	id, err := parseSignerID(args[0])
	if err != nil {
		return err
	}
	db, err := trustdb.Open(trustDBPath())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Remove(id)
}

func runTrustList(cmd *cobra.Command, args []string) error {
	db, err := trustdb.Open(trustDBPath())
	if err != nil {
		return err
	}
	defer db.Close()
	signers, err := db.List()
	if err != nil {
		return err
	}
	for _, s := range signers {
		fmt.Printf("%s\t%s\t%s\n", hex.EncodeToString(s.SignerID[:]), s.AddedAt.Format("2006-01-02T15:04:05Z07:00"), s.Note)
	}
	return nil
}
