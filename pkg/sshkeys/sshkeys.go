package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

var ErrKeyExists = errors.New("sshkeys: key pair already exists")

// KeyPair is an ed25519 key pair written to disk for the storage account.
type KeyPair struct {
	PrivateKeyPath string
	PublicKeyPath  string
	AuthorizedKey  string
}

// Generate writes <dir>/<name> and <dir>/<name>.pub. An existing private key is left
// untouched and reported with ErrKeyExists.
func Generate(dir, name, comment string) (*KeyPair, error) {
	pair := &KeyPair{
		PrivateKeyPath: filepath.Join(dir, name),
		PublicKeyPath:  filepath.Join(dir, name+".pub"),
	}
	if _, err := os.Stat(pair.PrivateKeyPath); err == nil {
		return pair, ErrKeyExists
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	if err := os.WriteFile(pair.PrivateKeyPath, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	authorized := ssh.MarshalAuthorizedKey(sshPub)
	if err := os.WriteFile(pair.PublicKeyPath, authorized, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}

	pair.AuthorizedKey = string(authorized)
	return pair, nil
}
