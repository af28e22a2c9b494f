package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.qsfs.dev/qsfs"
	"go.qsfs.dev/qsfs/internal/sign"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen OUTPUT_PREFIX",
	Short: "Generate an ML-KEM-1024 recipient/identity keypair",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeygen,
}

var keygenHybrid bool

func init() {
	keygenCmd.Flags().BoolVar(&keygenHybrid, "hybrid", false, "also generate an X25519 keypair for hybrid mode")
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	prefix := args[0]
	recipient, identity, err := qsfs.GenerateRecipientPair(prefix, keygenHybrid)
	if err != nil {
		return err
	}

	recipientBytes := append([]byte(nil), recipient.MLKEMPublicKey...)
	if recipient.Hybrid() {
		recipientBytes = append(recipientBytes, recipient.X25519PublicKey...)
	}
	if err := writeKeyFile(prefix+".recipient", recipientBytes); err != nil {
		return err
	}

	identityBytes := append([]byte(nil), identity.MLKEMSecretKey...)
	if identity.Hybrid() {
		identityBytes = append(identityBytes, identity.X25519SecretKey[:]...)
	}
	if err := writeKeyFile(prefix+".identity", identityBytes); err != nil {
		return err
	}

	fmt.Printf("wrote %s.recipient and %s.identity\n", prefix, prefix)
	return nil
}

var signerKeygenCmd = &cobra.Command{
	Use:   "signer-keygen OUTPUT_PREFIX",
	Short: "Generate an ML-DSA-87 signer keypair",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignerKeygen,
}

func init() {
	rootCmd.AddCommand(signerKeygenCmd)
}

func runSignerKeygen(cmd *cobra.Command, args []string) error {
	prefix := args[0]
	pub, priv, err := sign.GenerateKey()
	if err != nil {
		return err
	}
	if err := writeKeyFile(prefix+".signer-pub", pub); err != nil {
		return err
	}
	if err := writeKeyFile(prefix+".signer-key", priv); err != nil {
		return err
	}
	signerID := sign.SignerID(pub)
	fmt.Printf("wrote %s.signer-pub and %s.signer-key\nsigner_id: %x\n", prefix, prefix, signerID)
	return nil
}
