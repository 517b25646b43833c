package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// ConfigFileName is the per-directory config file. It is parsed as HuJSON,
// so comments and trailing commas are allowed.
const ConfigFileName = ".docstore.json"

// Config holds the CLI configuration options.
type Config struct {
	// Path is the store file the commands operate on.
	Path string `json:"path"`

	// Indent pretty-prints the stored JSON.
	Indent bool `json:"indent,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Path: "docstore.json",
	}
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Config file in the working directory (.docstore.json, if it exists)
// 3. The --file flag (applied by the caller).
func LoadConfig(workDir string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(workDir + string(os.PathSeparator) + ConfigFileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("read config: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC in %s: %w", ConfigFileName, err)
	}

	unmarshalErr := json.Unmarshal(standardized, &cfg)
	if unmarshalErr != nil {
		return Config{}, fmt.Errorf("invalid JSON in %s: %w", ConfigFileName, unmarshalErr)
	}

	if cfg.Path == "" {
		return Config{}, errors.New("config path cannot be empty")
	}

	return cfg, nil
}
