package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the commands read from the environment.
type Config struct {
	RPCURL       string `envconfig:"RPC_URL" required:"true"`
	BundlerURL   string `envconfig:"BUNDLER_URL" required:"true"`
	PaymasterURL string `envconfig:"PAYMASTER_URL"`

	// PrivateKey is the hex-encoded owner key. Commands that can run from a
	// fresh environment generate one when it is empty and write it back to
	// the .env file.
	PrivateKey string `envconfig:"PRIVATE_KEY"`

	EntryPoint     string `envconfig:"ENTRYPOINT_ADDRESS" default:"0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"`
	AccountFactory string `envconfig:"FACTORY_ADDRESS" default:"0x9406Cc6185a346906296840746125a0E44976454"`

	// Delegate is the contract an EOA is upgraded to via EIP-7702.
	Delegate string `envconfig:"DELEGATE_ADDRESS"`

	ExplorerURL string `envconfig:"EXPLORER_URL" default:"https://sepolia.etherscan.io"`

	ReceiptPollInterval time.Duration `envconfig:"RECEIPT_POLL_INTERVAL" default:"2s"`
	ReceiptPollTimeout  time.Duration `envconfig:"RECEIPT_POLL_TIMEOUT" default:"90s"`
}

// EnvFile is where LoadEnv reads from and where generated keys are written
// back to.
const EnvFile = ".env"

// DefaultEntryPoint is the canonical EntryPoint v0.6 deployment.
const DefaultEntryPoint = "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"

// LoadEnv loads the .env file when present. A missing file is not an error:
// every value can also come from the process environment.
func LoadEnv() {
	if err := godotenv.Load(EnvFile); err != nil && !os.IsNotExist(err) {
		panic(fmt.Sprintf("error loading %s: %v", EnvFile, err))
	}
}

// Load parses the typed configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// GetEnv returns the value of an environment variable, or the empty string.
func GetEnv(key string) string {
	return os.Getenv(key)
}
