// Package democonfig loads the small TOML file the qads-writer and
// qads-reader demo binaries run against, following the same
// file-plus-environment-override pattern as the config package this
// codebase's feeder binaries used to load exchange settings.
package democonfig

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk shape of a demo binary's TOML file.
type Config struct {
	Arena struct {
		Name           string `toml:"name"`
		SizeBytes      int64  `toml:"size_bytes"`
		SlotCount      int    `toml:"slot_count"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		VerifyChecksum bool   `toml:"verify_checksum"`
		WaitForWriter  bool   `toml:"wait_for_writer"`
	} `toml:"arena"`
}

// Timeout converts TimeoutSeconds to a time.Duration; 0 means infinite.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Arena.TimeoutSeconds) * time.Second
}

// Load reads a .env file at envPath if present (missing is not an error),
// then parses the TOML file at path. A non-empty QADS_ARENA_NAME
// environment variable (set in the OS environment or by the .env load)
// replaces [arena].name from the TOML file — mirroring the
// ALEPH_FEEDER_CONFIG / ALEPH_SHM override pattern from this codebase's
// earlier feeder binaries.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if name := os.Getenv("QADS_ARENA_NAME"); name != "" {
		c.Arena.Name = name
	}

	return &c, nil
}
