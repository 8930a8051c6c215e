package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/spf13/viper"
)

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address        string                  `yaml:"address"`
	MaxUploadSize  string                  `yaml:"maxUploadSize"`
	AllowedOrigins []string                `yaml:"allowedOrigins,omitempty"`
	RequestTimeout int                     `yaml:"requestTimeout,omitempty"` // seconds
	Irradiance     config.IrradianceConfig `yaml:"irradiance,omitempty"`
	Logging        config.LoggingConfig    `yaml:"logging"`

	uploadSizeBytes int64
}

var sizeUnits = map[string]int64{
	"":   1,
	"B":  1,
	"K":  1 << 10,
	"KB": 1 << 10,
	"M":  1 << 20,
	"MB": 1 << 20,
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Address:         constants.DefaultServerAddress,
		MaxUploadSize:   strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		AllowedOrigins:  []string{"*"},
		RequestTimeout:  constants.DefaultRequestTimeout,
		uploadSizeBytes: constants.DefaultMaxUploadSizeBytes,
	}
}

// LoadConfig reads the server configuration. A missing file yields the
// defaults; SOLAR_SERVER_* environment variables override either.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(constants.ServerEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("address", defaults.Address)
	v.SetDefault("maxUploadSize", defaults.MaxUploadSize)
	v.SetDefault("allowedOrigins", defaults.AllowedOrigins)
	v.SetDefault("requestTimeout", defaults.RequestTimeout)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read server config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode server config, %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// SetUploadSizeBytes overrides the upload limit, e.g. from a command-line
// flag. Non-positive sizes are ignored.
func (c *Config) SetUploadSizeBytes(size int64) {
	if size <= 0 {
		return
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
}

// Timeout returns the per-request deadline.
func (c *Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return constants.DefaultRequestTimeout * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) normalize() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must not be negative, got %d", c.RequestTimeout)
	}
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}

	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("maxUploadSize: %w", err)
	}
	if size == 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
	return nil
}

// ParseSize converts a byte count with an optional B, K(B) or M(B) suffix,
// e.g. "256K", into bytes. An empty string selects the default limit.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	digits := strings.TrimRightFunc(trimmed, func(r rune) bool { return !unicode.IsDigit(r) })
	unit := strings.TrimSpace(trimmed[len(digits):])
	if digits == "" {
		return 0, fmt.Errorf("invalid size %q", value)
	}

	multiplier, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unsupported size unit %q", unit)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("size must not be negative, got %q", value)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("size %q overflows", value)
	}
	return n * multiplier, nil
}
