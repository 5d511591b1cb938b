package ledger

import "fmt"

// Config is the process configuration of the ledger CLI. Every field can be
// set from the environment; command-line flags override it.
type Config struct {
	EnvName            string `env:"ENV_NAME"`
	LogLevel           string `env:"LOG_LEVEL"`
	OTelLibraryName    string `env:"OTEL_LIBRARY_NAME"`
	CheckDisputeClient bool   `env:"LEDGER_CHECK_DISPUTE_CLIENT"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		EnvName:         "production",
		OTelLibraryName: "github.com/HayleyDeckers/ledger",
	}
}

// LoadConfig returns DefaultConfig overlaid with the environment.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if err := SetConfigFromEnvVars(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the configuration targets production.
func (c Config) IsProduction() bool {
	return c.EnvName == "production"
}
