package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/hapticlink/internal/ble/protocol"
	"github.com/chaz8081/hapticlink/internal/driver"
)

const appName = "hapticlink"

// Config holds all application configuration.
type Config struct {
	Device     DeviceConfig `yaml:"device"`
	StorePath  string       `yaml:"store_path"`
	SocketPath string       `yaml:"socket_path"` // empty: $XDG_RUNTIME_DIR/hapticlink.sock
	EventLog   string       `yaml:"event_log"`   // empty: recording disabled
	LogLevel   string       `yaml:"log_level"`
}

// DeviceConfig holds peer discovery and protocol settings.
type DeviceConfig struct {
	Name                  string        `yaml:"name"`
	ScanTimeout           time.Duration `yaml:"scan_timeout"`
	Protocol              string        `yaml:"protocol"`     // "auto", "legacy", "control" or "devinfo"
	AssumedType           string        `yaml:"assumed_type"` // legacy only
	ForgetOnProtocolError bool          `yaml:"forget_on_protocol_error"`
	WriteQueue            int           `yaml:"write_queue"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultSocketPath returns the daemon socket path used when socket_path is empty.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName+".sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.sock", appName, os.Getuid()))
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	storePath := filepath.Join(home, ".local", "state", appName, "state.yaml")

	return &Config{
		Device: DeviceConfig{
			Name:        protocol.DeviceName,
			ScanTimeout: 10 * time.Second,
			Protocol:    string(protocol.GenerationAuto),
			AssumedType: protocol.DeviceTypeNeckband.String(),
			WriteQueue:  16,
		},
		StorePath: storePath,
		LogLevel:  "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.StorePath = expandTilde(cfg.StorePath)
	cfg.SocketPath = expandTilde(cfg.SocketPath)
	cfg.EventLog = expandTilde(cfg.EventLog)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}

	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("device.scan_timeout must be > 0")
	}

	gen, err := protocol.ParseGeneration(c.Device.Protocol)
	if err != nil {
		return fmt.Errorf("device.protocol must be auto, legacy, control, or devinfo, got %q", c.Device.Protocol)
	}

	if gen == protocol.GenerationLegacy {
		if _, err := protocol.ParseDeviceType(c.Device.AssumedType); err != nil {
			return fmt.Errorf("device.assumed_type must be cap, neckband, or wristband, got %q", c.Device.AssumedType)
		}
	}

	if c.Device.WriteQueue <= 0 {
		return fmt.Errorf("device.write_queue must be > 0")
	}

	if c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// Socket returns the configured socket path or the default one.
func (c *Config) Socket() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return DefaultSocketPath()
}

// DriverOptions converts the device settings into driver options. The
// config must already be valid.
func (c *Config) DriverOptions(logger *slog.Logger) driver.Options {
	opts := driver.DefaultOptions()
	opts.DeviceName = c.Device.Name
	opts.ScanTimeout = c.Device.ScanTimeout
	opts.Generation = protocol.Generation(c.Device.Protocol)
	if t, err := protocol.ParseDeviceType(c.Device.AssumedType); err == nil {
		opts.AssumedType = t
	}
	opts.ForgetOnProtocolError = c.Device.ForgetOnProtocolError
	opts.WriteQueue = c.Device.WriteQueue
	opts.Logger = logger
	opts.EventLogLevel = ParseLogLevel(c.LogLevel)
	return opts
}

// ParseLogLevel maps a log_level value to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WriteDefault writes the default config to DefaultConfigPath and returns
// the path. It returns ("", nil) if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	header := "# " + appName + " configuration\n# device.protocol: auto | legacy | control | devinfo\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
