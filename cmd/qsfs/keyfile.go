package main

import (
	"fmt"
	"os"

	"go.qsfs.dev/qsfs"
	"go.qsfs.dev/qsfs/internal/sign"
)

// Recipient and identity key files are raw binary: a packed ML-KEM-1024
// key, optionally followed immediately by a 32-byte X25519 key for hybrid
// mode. File size alone distinguishes the two cases. On-disk layout is a
// CLI convention, not part of the container format.

func readRecipientFile(label, path string) (*qsfs.Recipient, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading recipient file %s: %w", path, err)
	}
	switch len(data) {
	case qsfs.MLKEMPublicKeySize:
		return qsfs.NewRecipient(label, data)
	case qsfs.MLKEMPublicKeySize + qsfs.X25519KeySize:
		return qsfs.NewHybridRecipient(label, data[:qsfs.MLKEMPublicKeySize], data[qsfs.MLKEMPublicKeySize:])
	default:
		return nil, fmt.Errorf("recipient file %s has unexpected size %d", path, len(data))
	}
}

func readIdentityFile(label, path string) (*qsfs.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identity file %s: %w", path, err)
	}
	switch len(data) {
	case qsfs.MLKEMSecretKeySize:
		return qsfs.NewIdentity(label, data)
	case qsfs.MLKEMSecretKeySize + qsfs.X25519KeySize:
		return qsfs.NewHybridIdentity(label, data[:qsfs.MLKEMSecretKeySize], data[qsfs.MLKEMSecretKeySize:])
	default:
		return nil, fmt.Errorf("identity file %s has unexpected size %d", path, len(data))
	}
}

// Signer key files: public key file holds the raw ML-DSA-87 public key;
// private key file holds the raw ML-DSA-87 private key.

func readSignerFiles(pubPath, privPath string) (*qsfs.Signer, error) {
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, fmt.Errorf("reading signer public key %s: %w", pubPath, err)
	}
	priv, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("reading signer private key %s: %w", privPath, err)
	}
	if len(pub) != sign.PublicKeySize {
		return nil, fmt.Errorf("signer public key %s has unexpected size %d", pubPath, len(pub))
	}
	if len(priv) != sign.PrivateKeySize {
		return nil, fmt.Errorf("signer private key %s has unexpected size %d", privPath, len(priv))
	}
	return &qsfs.Signer{PublicKey: pub, PrivateKey: priv}, nil
}

func writeKeyFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
