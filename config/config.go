package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the simulator's run configuration.
type Config struct {
	Execution struct {
		MaxCycles  uint64 `toml:"max_cycles"`
		MemoryBase uint32 `toml:"memory_base"`
		MemorySize uint32 `toml:"memory_size"`
		EntryPoint uint32 `toml:"entry_point"`
		TimeScale  uint64 `toml:"time_scale"`
		Mtvec      uint32 `toml:"mtvec"`

		// ForwardingEnabled is accepted but has no effect on the pipeline:
		// RAW hazards are resolved by stalling, not forwarding.
		ForwardingEnabled bool `toml:"forwarding_enabled"`
	} `toml:"execution"`

	Peripherals struct {
		UARTEnabled  bool `toml:"uart_enabled"`
		CLINTEnabled bool `toml:"clint_enabled"`
	} `toml:"peripherals"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Execution.MaxCycles = 1_000_000
	cfg.Execution.MemoryBase = 0
	cfg.Execution.MemorySize = 1 << 20 // 1 MiB
	cfg.Execution.EntryPoint = 0
	cfg.Execution.TimeScale = 1
	cfg.Execution.Mtvec = 0
	cfg.Execution.ForwardingEnabled = false

	cfg.Peripherals.UARTEnabled = true
	cfg.Peripherals.CLINTEnabled = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "rv32pipe")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "rv32pipe")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file is
// not an error: the defaults are returned as-is.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
