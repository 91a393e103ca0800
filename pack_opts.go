package seal

import "log/slog"

// PackOption configures Pack, PackTo and PackFile.
type PackOption func(*packConfig)

type packConfig struct {
	compression    Compression
	level          int
	key            []byte
	cipher         Cipher
	cipherSet      bool
	maxFiles       int
	workers        int
	readAheadBytes uint64
	logger         *slog.Logger
	progress       ProgressFunc
}

func newPackConfig(opts []PackOption) packConfig {
	cfg := packConfig{compression: CompressionDeflate}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// log returns the logger, falling back to a discard logger if nil.
func (c *packConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// resolvedCipher returns the cipher to use: the explicit choice if one was
// made, AES-256-GCM when a key is set, none otherwise.
func (c *packConfig) resolvedCipher() Cipher {
	switch {
	case c.cipherSet:
		return c.cipher
	case c.key != nil:
		return CipherAES256GCM
	default:
		return CipherNone
	}
}

// PackWithCompression sets the body compression algorithm.
// The default is CompressionDeflate.
func PackWithCompression(c Compression) PackOption {
	return func(cfg *packConfig) {
		cfg.compression = c
	}
}

// PackWithCompressionLevel sets an algorithm-specific compression level.
// Zero uses the algorithm default.
func PackWithCompressionLevel(level int) PackOption {
	return func(cfg *packConfig) {
		cfg.level = level
	}
}

// PackWithKey encrypts the body with key, which must be KeySize bytes.
// Unless PackWithCipher is given, AES-256-GCM is used.
func PackWithKey(key []byte) PackOption {
	return func(cfg *packConfig) {
		cfg.key = key
	}
}

// PackWithCipher selects the encryption algorithm. Any cipher other than
// CipherNone requires PackWithKey.
func PackWithCipher(c Cipher) PackOption {
	return func(cfg *packConfig) {
		cfg.cipher = c
		cfg.cipherSet = true
	}
}

// PackWithMaxFiles limits the number of entries packed.
// Zero uses the default limit. Negative means no limit.
func PackWithMaxFiles(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.maxFiles = n
	}
}

// PackWithWorkers sets the number of goroutines reading files ahead of the
// serializer. Values <= 1 read serially; zero picks a count automatically.
// Output is identical for every worker count.
func PackWithWorkers(n int) PackOption {
	return func(cfg *packConfig) {
		cfg.workers = n
	}
}

// PackWithReadAheadBytes caps the file content buffered by read-ahead
// workers. Zero uses the default budget.
func PackWithReadAheadBytes(limit uint64) PackOption {
	return func(cfg *packConfig) {
		cfg.readAheadBytes = limit
	}
}

// PackWithLogger sets the logger for pack operations.
// If not set, logging is disabled.
func PackWithLogger(logger *slog.Logger) PackOption {
	return func(cfg *packConfig) {
		cfg.logger = logger
	}
}

// PackWithProgress sets a callback to receive progress updates.
func PackWithProgress(fn ProgressFunc) PackOption {
	return func(cfg *packConfig) {
		cfg.progress = fn
	}
}
