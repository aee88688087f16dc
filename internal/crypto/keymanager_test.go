package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"address": "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"`)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimPrefix(testKey, "0x"), got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsEmptyPassword(t *testing.T) {
	_, err := EncryptKey(testKey, "")
	assert.Error(t, err)
	_, err = DecryptKey([]byte(`{}`), "")
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	_, err := LoadSigner(KeyConfig{})
	assert.ErrorIs(t, err, ErrNoKeySource)

	s, err := LoadSigner(KeyConfig{RawPrivateKey: testKey})
	require.NoError(t, err)
	want := s.Address()

	blob, err := EncryptKey(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "operator.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	s, err = LoadSigner(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, want, s.Address())
}

func TestGenerateSigner(t *testing.T) {
	a, err := GenerateSigner()
	require.NoError(t, err)
	b, err := GenerateSigner()
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), b.Address())
}
