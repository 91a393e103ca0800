package sealtype

// Compression identifies the compression algorithm applied to the body.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionDeflate
	CompressionZstd
	CompressionLZ4
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known algorithm.
func (c Compression) Valid() bool {
	return c <= CompressionLZ4
}

// Cipher identifies the authenticated cipher applied to the body.
type Cipher uint8

const (
	CipherNone Cipher = iota
	CipherAES256GCM
	CipherChaCha20Poly1305
)

// String returns the human-readable name of the cipher.
func (c Cipher) String() string {
	switch c {
	case CipherNone:
		return "none"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known cipher.
func (c Cipher) Valid() bool {
	return c <= CipherChaCha20Poly1305
}
