package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/meigma/seal"
)

// envPrefix namespaces environment overrides, e.g. SEAL_COMPRESSION.
const envPrefix = "SEAL"

// config holds settings resolved from flags, SEAL_ environment variables,
// an optional config file and defaults, in that order of precedence.
type config struct {
	Compression       string `mapstructure:"compression"`
	Level             int    `mapstructure:"level"`
	Cipher            string `mapstructure:"cipher"`
	KeyFile           string `mapstructure:"key-file"`
	Workers           int    `mapstructure:"workers"`
	ReadAhead         uint64 `mapstructure:"read-ahead"`
	MaxFiles          int    `mapstructure:"max-files"`
	StrictPermissions bool   `mapstructure:"strict-permissions"`
	MaxBodySize       uint64 `mapstructure:"max-body-size"`
	LogLevel          string `mapstructure:"log-level"`
}

func defaultConfig() config {
	return config{
		Compression: seal.CompressionDeflate.String(),
		LogLevel:    "warn",
	}
}

// loadConfig resolves the configuration for one command invocation.
// path names an optional YAML, TOML or JSON file; an empty path skips it.
func loadConfig(path string, flags *pflag.FlagSet) (*config, error) {
	v := viper.New()

	defaults := defaultConfig()
	v.SetDefault("compression", defaults.Compression)
	v.SetDefault("level", defaults.Level)
	v.SetDefault("cipher", defaults.Cipher)
	v.SetDefault("key-file", defaults.KeyFile)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("read-ahead", defaults.ReadAhead)
	v.SetDefault("max-files", defaults.MaxFiles)
	v.SetDefault("strict-permissions", defaults.StrictPermissions)
	v.SetDefault("max-body-size", defaults.MaxBodySize)
	v.SetDefault("log-level", defaults.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *config) compression() (seal.Compression, error) {
	for _, alg := range []seal.Compression{
		seal.CompressionNone,
		seal.CompressionDeflate,
		seal.CompressionZstd,
		seal.CompressionLZ4,
	} {
		if strings.EqualFold(c.Compression, alg.String()) {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q (want none, deflate, zstd or lz4)", c.Compression)
}

// cipher returns the configured cipher. ok is false when none was named,
// leaving the choice to the library.
func (c *config) cipher() (alg seal.Cipher, ok bool, err error) {
	if c.Cipher == "" {
		return 0, false, nil
	}
	for _, alg := range []seal.Cipher{
		seal.CipherNone,
		seal.CipherAES256GCM,
		seal.CipherChaCha20Poly1305,
	} {
		if strings.EqualFold(c.Cipher, alg.String()) {
			return alg, true, nil
		}
	}
	return 0, false, fmt.Errorf("unknown cipher %q (want none, aes-256-gcm or chacha20-poly1305)", c.Cipher)
}

// key reads the hex key named by KeyFile. It returns nil when no key file
// is configured.
func (c *config) key() ([]byte, error) {
	if c.KeyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	key, err := seal.ParseKey(string(data))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", c.KeyFile, err)
	}
	return key, nil
}
