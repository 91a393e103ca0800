package seal

import (
	"log/slog"

	"github.com/meigma/seal/internal/compress"
)

// UnpackOption configures Unpack, UnpackFile, Verify and VerifyFile.
type UnpackOption func(*unpackConfig)

type unpackConfig struct {
	key               []byte
	logger            *slog.Logger
	progress          ProgressFunc
	strictPermissions bool
	maxBodySize       uint64
	maxDecoderMemory  uint64
}

func newUnpackConfig(opts []UnpackOption) unpackConfig {
	cfg := unpackConfig{maxDecoderMemory: compress.DefaultMaxDecoderMemory}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *unpackConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// UnpackWithKey sets the key for encrypted archives.
// The key is ignored for unencrypted archives.
func UnpackWithKey(key []byte) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.key = key
	}
}

// UnpackWithLogger sets the logger for unpack operations.
// If not set, logging is disabled.
func UnpackWithLogger(logger *slog.Logger) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.logger = logger
	}
}

// UnpackWithProgress sets a callback to receive progress updates.
func UnpackWithProgress(fn ProgressFunc) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.progress = fn
	}
}

// UnpackWithStrictPermissions makes permission and symlink failures fatal.
// By default they are collected in UnpackResult.Warnings.
func UnpackWithStrictPermissions(strict bool) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.strictPermissions = strict
	}
}

// UnpackWithMaxBodySize rejects archives whose stored or uncompressed body
// is larger than limit bytes. Zero means no limit.
func UnpackWithMaxBodySize(limit uint64) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.maxBodySize = limit
	}
}

// UnpackWithMaxDecoderMemory caps zstd decoder memory.
// Zero disables the limit.
func UnpackWithMaxDecoderMemory(limit uint64) UnpackOption {
	return func(cfg *unpackConfig) {
		cfg.maxDecoderMemory = limit
	}
}
