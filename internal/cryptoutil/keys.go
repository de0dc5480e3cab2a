package cryptoutil

import (
	"crypto/ed25519"
	"fmt"
	"os"
)

// WriteKeyPair writes pub and priv to disk as raw bytes, the format
// config.IdentityConfig's key paths point at. The private key file is
// created 0600; the public key file 0644.
func WriteKeyPair(pubPath, privPath string, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return fmt.Errorf("cryptoutil: writing public key: %w", err)
	}
	if err := os.WriteFile(privPath, priv, 0o600); err != nil {
		return fmt.Errorf("cryptoutil: writing private key: %w", err)
	}
	return nil
}

// LoadKeyPair reads a node's Ed25519 key pair from the raw-bytes files
// WriteKeyPair produces.
func LoadKeyPair(pubPath, privPath string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pubBytes, err := os.ReadFile(pubPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: reading public key: %w", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("cryptoutil: public key file has %d bytes, want %d", len(pubBytes), ed25519.PublicKeySize)
	}

	privBytes, err := os.ReadFile(privPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoutil: reading private key: %w", err)
	}
	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("cryptoutil: private key file has %d bytes, want %d", len(privBytes), ed25519.PrivateKeySize)
	}

	return ed25519.PublicKey(pubBytes), ed25519.PrivateKey(privBytes), nil
}

// KeyFilesExist reports whether both key files are already present.
func KeyFilesExist(pubPath, privPath string) bool {
	_, errPub := os.Stat(pubPath)
	_, errPriv := os.Stat(privPath)
	return errPub == nil && errPriv == nil
}
