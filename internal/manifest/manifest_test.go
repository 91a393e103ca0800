package manifest

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/seal/internal/cipher"
	"github.com/meigma/seal/internal/digest"
	"github.com/meigma/seal/internal/sealtype"
)

func sample() *Manifest {
	return &Manifest{
		Version:          Version,
		Compression:      sealtype.CompressionDeflate,
		Cipher:           sealtype.CipherAES256GCM,
		IV:               cipher.IV{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		Digest:           digest.Bytes([]byte("body")),
		UncompressedSize: 1234,
		BodySize:         567,
	}
}

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	m := sample()
	b := m.Encode()
	require.Len(t, b, Size)
	assert.Equal(t, 72, Size)

	assert.Equal(t, "SEAL", string(b[0:4]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(b[4:6]))
	assert.Equal(t, byte(sealtype.CompressionDeflate), b[6])
	assert.Equal(t, byte(sealtype.CipherAES256GCM), b[7])
	assert.Equal(t, m.IV[:], b[8:24])
	assert.Equal(t, m.Digest[:], b[24:56])
	assert.Equal(t, uint64(1234), binary.LittleEndian.Uint64(b[56:64]))
	assert.Equal(t, uint64(567), binary.LittleEndian.Uint64(b[64:72]))

	assert.Equal(t, b[:24], m.AAD())
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	m := sample()
	parsed, err := Parse(m.Encode())
	require.NoError(t, err)
	assert.Equal(t, m, parsed)
	assert.True(t, parsed.Encrypted())

	var buf bytes.Buffer
	n, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(Size), n)

	read, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, read)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{"truncated", func(b []byte) []byte { return b[:Size-1] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"version zero", func(b []byte) []byte { binary.LittleEndian.PutUint16(b[4:], 0); return b }},
		{"unknown compression", func(b []byte) []byte { b[6] = 42; return b }},
		{"unknown cipher", func(b []byte) []byte { b[7] = 42; return b }},
		{"iv without cipher", func(b []byte) []byte { b[7] = byte(sealtype.CipherNone); return b }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.mutate(sample().Encode()))
			require.ErrorIs(t, err, sealtype.ErrCorruptArchive)
		})
	}
}

func TestParseNewerVersion(t *testing.T) {
	t.Parallel()

	b := sample().Encode()
	binary.LittleEndian.PutUint16(b[4:], Version+1)
	_, err := Parse(b)
	require.ErrorIs(t, err, sealtype.ErrUnsupportedVersion)
	require.ErrorIs(t, err, sealtype.ErrCorruptArchive)
}

func TestStoredSizeMustMatchWhenUntransformed(t *testing.T) {
	t.Parallel()

	m := &Manifest{Version: Version, UncompressedSize: 10, BodySize: 11}
	_, err := Parse(m.Encode())
	require.ErrorIs(t, err, sealtype.ErrCorruptArchive)

	m.BodySize = 10
	_, err = Parse(m.Encode())
	require.NoError(t, err)
}

func TestReadShortInput(t *testing.T) {
	t.Parallel()

	_, err := Read(bytes.NewReader([]byte("SEAL")))
	var corrupt *sealtype.CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, uint64(4), corrupt.Offset)
}
