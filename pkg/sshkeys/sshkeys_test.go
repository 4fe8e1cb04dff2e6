package sshkeys

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir() + "/keys"

	pair, err := Generate(dir, "storage_ed25519", "pixelift-storage")
	require.NoError(t, err)

	priv, err := os.ReadFile(pair.PrivateKeyPath)
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(priv)
	require.NoError(t, err)

	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pair.AuthorizedKey))
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey().Marshal(), pub.Marshal())
	assert.Equal(t, ssh.KeyAlgoED25519, pub.Type())

	info, err := os.Stat(pair.PrivateKeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = Generate(dir, "storage_ed25519", "")
	assert.ErrorIs(t, err, ErrKeyExists)
}
