package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	key, addr, err := Generate()
	require.NoError(err)

	loaded, loadedAddr, err := Load(Hex(key))
	require.NoError(err)
	assert.Equal(addr, loadedAddr)
	assert.Equal(key.D, loaded.D)

	// The 0x prefix is accepted too.
	_, prefixedAddr, err := Load("0x" + Hex(key))
	require.NoError(err)
	assert.Equal(addr, prefixedAddr)

	_, _, err = Load("not-a-key")
	assert.Error(err)
}

func TestLoadOrGenerate(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	key, addr, err := Generate()
	require.NoError(err)

	loaded, loadedAddr, generated, err := LoadOrGenerate(Hex(key))
	require.NoError(err)
	assert.False(generated)
	assert.Equal(addr, loadedAddr)
	assert.Equal(key.D, loaded.D)

	_, freshAddr, generated, err := LoadOrGenerate("")
	require.NoError(err)
	assert.True(generated)
	assert.NotEqual(addr, freshAddr)
}

func TestKeyFileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	key, addr, err := Generate()
	require.NoError(err)

	path := filepath.Join(t.TempDir(), "owner.key")
	require.NoError(SaveFile(path, key))

	loaded, loadedAddr, err := LoadFile(path)
	require.NoError(err)
	assert.Equal(addr, loadedAddr)
	assert.Equal(key.D, loaded.D)
}

func TestUpdateEnvPreservesOtherKeys(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(os.WriteFile(path, []byte("RPC_URL=https://example.invalid\nCHAIN=sepolia\n"), 0o600))

	key, _, err := Generate()
	require.NoError(err)
	require.NoError(PersistKey(path, key))

	env, err := godotenv.Read(path)
	require.NoError(err)
	assert.Equal("https://example.invalid", env["RPC_URL"])
	assert.Equal("sepolia", env["CHAIN"])
	assert.Equal(Hex(key), env["PRIVATE_KEY"])
}

func TestUpdateEnvCreatesFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(UpdateEnv(path, map[string]string{"DELEGATE_ADDRESS": "0x01"}))

	env, err := godotenv.Read(path)
	require.NoError(err)
	assert.Equal("0x01", env["DELEGATE_ADDRESS"])
}
