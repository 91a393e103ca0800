// Package manifest encodes the fixed-layout archive header.
//
// Layout (little-endian, 72 bytes):
//
//	[4]  magic "SEAL"
//	[2]  format version
//	[1]  compression algorithm id
//	[1]  cipher algorithm id
//	[16] initialization vector (zero when cipher is none)
//	[32] content digest of the uncompressed body
//	[8]  uncompressed body length
//	[8]  stored body length (compressed, then optionally encrypted)
package manifest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/seal/internal/cipher"
	"github.com/meigma/seal/internal/digest"
	"github.com/meigma/seal/internal/sealtype"
)

// Magic is the constant that opens every archive.
const Magic = "SEAL"

// Version is the current format version.
const Version uint16 = 1

// Size is the encoded manifest length in bytes.
const Size = 4 + 2 + 1 + 1 + cipher.IVSize + digest.Size + 8 + 8

// prefixSize covers magic, version, algorithm ids and IV: the fields fixed
// before the body is produced.
const prefixSize = 4 + 2 + 1 + 1 + cipher.IVSize

// Manifest describes how to interpret an archive body.
type Manifest struct {
	Version          uint16
	Compression      sealtype.Compression
	Cipher           sealtype.Cipher
	IV               cipher.IV
	Digest           digest.Digest
	UncompressedSize uint64
	BodySize         uint64
}

// Encrypted reports whether the body is encrypted.
func (m *Manifest) Encrypted() bool {
	return m.Cipher != sealtype.CipherNone
}

// AAD returns the header prefix authenticated by every cipher chunk.
func (m *Manifest) AAD() []byte {
	return m.Encode()[:prefixSize]
}

// Encode returns the binary form of m.
func (m *Manifest) Encode() []byte {
	buf := make([]byte, 0, Size)
	buf = append(buf, Magic...)
	buf = binary.LittleEndian.AppendUint16(buf, m.Version)
	buf = append(buf, byte(m.Compression), byte(m.Cipher))
	buf = append(buf, m.IV[:]...)
	buf = append(buf, m.Digest[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, m.UncompressedSize)
	buf = binary.LittleEndian.AppendUint64(buf, m.BodySize)
	return buf
}

// WriteTo writes the encoded manifest to w.
func (m *Manifest) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Encode())
	return int64(n), err
}

// Parse decodes and validates a manifest from the first Size bytes of b.
// All failures are reported as sealtype.ErrCorruptArchive; a newer format
// version additionally matches sealtype.ErrUnsupportedVersion.
func Parse(b []byte) (*Manifest, error) {
	if len(b) < Size {
		return nil, sealtype.Corruptf(uint64(len(b)), "manifest truncated: %d of %d bytes", len(b), Size)
	}
	if string(b[:4]) != Magic {
		return nil, sealtype.Corruptf(0, "bad magic %q", b[:4])
	}

	m := &Manifest{
		Version:     binary.LittleEndian.Uint16(b[4:6]),
		Compression: sealtype.Compression(b[6]),
		Cipher:      sealtype.Cipher(b[7]),
	}
	off := 8
	copy(m.IV[:], b[off:off+cipher.IVSize])
	off += cipher.IVSize
	copy(m.Digest[:], b[off:off+digest.Size])
	off += digest.Size
	m.UncompressedSize = binary.LittleEndian.Uint64(b[off:])
	m.BodySize = binary.LittleEndian.Uint64(b[off+8:])

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks field consistency.
func (m *Manifest) Validate() error {
	if m.Version == 0 || m.Version > Version {
		return &sealtype.CorruptError{
			Offset: 4,
			Reason: fmt.Sprintf("format version %d, supported up to %d", m.Version, Version),
			Err:    sealtype.ErrUnsupportedVersion,
		}
	}
	if !m.Compression.Valid() {
		return sealtype.Corruptf(6, "unknown compression algorithm %d", m.Compression)
	}
	if !m.Cipher.Valid() {
		return sealtype.Corruptf(7, "unknown cipher %d", m.Cipher)
	}
	if m.Cipher == sealtype.CipherNone && m.IV != (cipher.IV{}) {
		return sealtype.Corruptf(8, "initialization vector set on unencrypted archive")
	}
	if m.Cipher == sealtype.CipherNone && m.Compression == sealtype.CompressionNone && m.BodySize != m.UncompressedSize {
		return sealtype.Corruptf(prefixSize+digest.Size, "stored body length %d differs from uncompressed length %d", m.BodySize, m.UncompressedSize)
	}
	return nil
}

// Read reads and parses a manifest from r.
func Read(r io.Reader) (*Manifest, error) {
	buf := make([]byte, Size)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, sealtype.Corruptf(uint64(n), "manifest truncated: %d of %d bytes", n, Size) //nolint:gosec // n is non-negative
		}
		return nil, err
	}
	return Parse(buf)
}
