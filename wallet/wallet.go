// Package wallet manages the owner signing key: loading it from the
// environment, generating a fresh one, and persisting it back to the .env
// file or a key file.
package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Load parses a hex private key, with or without the 0x prefix.
func Load(hexKey string) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// Generate creates a fresh signing key.
func Generate() (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: generating key: %w", err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// LoadOrGenerate loads hexKey when set and generates a key otherwise.
// generated tells the caller whether the key needs persisting.
func LoadOrGenerate(hexKey string) (key *ecdsa.PrivateKey, addr common.Address, generated bool, err error) {
	if hexKey != "" {
		key, addr, err = Load(hexKey)
		return key, addr, false, err
	}
	key, addr, err = Generate()
	return key, addr, true, err
}

// Hex returns the bare hex encoding of the private key, the form PRIVATE_KEY
// is stored in.
func Hex(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}

// SaveFile writes the key to path in go-ethereum's key-file format.
func SaveFile(path string, key *ecdsa.PrivateKey) error {
	return crypto.SaveECDSA(path, key)
}

// LoadFile reads a key from a go-ethereum key file.
func LoadFile(path string) (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("wallet: loading key file %s: %w", path, err)
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// UpdateEnv rewrites the env file with the given values merged over its
// current contents. Existing entries not named in values survive.
func UpdateEnv(path string, values map[string]string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("wallet: reading %s: %w", path, err)
		}
		env = map[string]string{}
	}
	for k, v := range values {
		env[k] = v
	}
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("wallet: writing %s: %w", path, err)
	}
	return nil
}

// PersistKey stores the key under PRIVATE_KEY in the env file.
func PersistKey(path string, key *ecdsa.PrivateKey) error {
	return UpdateEnv(path, map[string]string{"PRIVATE_KEY": Hex(key)})
}
