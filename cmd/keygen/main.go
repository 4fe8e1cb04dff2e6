package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixelift/backend/pkg/secrets"
	"github.com/pixelift/backend/pkg/sshkeys"
	"github.com/spf13/pflag"
)

const usage = `usage:
  keygen ssh  [--dir DIR] [--name NAME]   generate the SFTP storage key pair
  keygen seal --key KEY VALUE             seal a credential for config.yaml
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "ssh":
		err = runSSH(os.Args[2:])
	case "seal":
		err = runSeal(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func runSSH(args []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	fs := pflag.NewFlagSet("ssh", pflag.ContinueOnError)
	dir := fs.String("dir", filepath.Join(homeDir, ".ssh"), "directory for the key pair")
	name := fs.String("name", "pixelift_storage_ed25519", "private key file name")
	comment := fs.String("comment", "pixelift-storage", "key comment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pair, err := sshkeys.Generate(*dir, *name, *comment)
	if errors.Is(err, sshkeys.ErrKeyExists) {
		fmt.Printf("Key pair already exists: %s (skipped)\n", pair.PrivateKeyPath)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Private key: %s\n", pair.PrivateKeyPath)
	fmt.Printf("Public key:  %s\n", pair.PublicKeyPath)
	fmt.Printf("Add to the storage host's authorized_keys:\n%s", pair.AuthorizedKey)
	return nil
}

func runSeal(args []string) error {
	fs := pflag.NewFlagSet("seal", pflag.ContinueOnError)
	key := fs.String("key", os.Getenv("PIXELIFT_STORAGE_SFTP_SECRET_KEY"), "secret key (defaults to PIXELIFT_STORAGE_SFTP_SECRET_KEY)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("seal takes exactly one value")
	}

	sealed, err := secrets.Seal(fs.Arg(0), *key)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}
