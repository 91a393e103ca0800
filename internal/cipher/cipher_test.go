package cipher

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/testutil"
)

var aad = []byte("SEAL header prefix")

func seal(t *testing.T, alg Algorithm, key []byte, iv IV, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, alg, key, iv, aad)
	require.NoError(t, err)
	// Write in odd-sized pieces to exercise chunk boundaries.
	for len(plain) > 0 {
		n := min(len(plain), 10_007)
		_, err := w.Write(plain[:n])
		require.NoError(t, err)
		plain = plain[n:]
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func open(alg Algorithm, key []byte, iv IV, ct []byte, additional []byte) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(ct), alg, key, iv, additional, uint64(len(ct)))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	sizes := []int{0, 1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 3*ChunkSize + 17}
	for _, alg := range []Algorithm{AES256GCM, ChaCha20Poly1305} {
		for _, size := range sizes {
			key := testutil.Key(1)
			iv, err := NewIV()
			require.NoError(t, err)
			plain := bytes.Repeat([]byte{0xA5}, size)

			ct := seal(t, alg, key, iv, plain)
			want, ok := SealedSize(alg, uint64(size))
			require.True(t, ok)
			assert.Equal(t, want, uint64(len(ct)), "%s size %d", alg, size)

			got, err := open(alg, key, iv, ct, aad)
			require.NoError(t, err)
			assert.Equal(t, plain, got, "%s size %d", alg, size)
		}
	}
}

func TestSealedSize(t *testing.T) {
	t.Parallel()

	n, ok := SealedSize(AES256GCM, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(TagSize), n)

	n, ok = SealedSize(AES256GCM, ChunkSize)
	require.True(t, ok)
	assert.Equal(t, uint64(ChunkSize+TagSize), n)

	n, ok = SealedSize(AES256GCM, ChunkSize+1)
	require.True(t, ok)
	assert.Equal(t, uint64(ChunkSize+1+2*TagSize), n)

	n, ok = SealedSize(None, 123)
	require.True(t, ok)
	assert.Equal(t, uint64(123), n)

	_, ok = SealedSize(AES256GCM, ^uint64(0))
	assert.False(t, ok)
}

func TestWrongKey(t *testing.T) {
	t.Parallel()

	iv, err := NewIV()
	require.NoError(t, err)
	for _, alg := range []Algorithm{AES256GCM, ChaCha20Poly1305} {
		ct := seal(t, alg, testutil.Key(1), iv, []byte("secret"))
		_, err := open(alg, testutil.Key(2), iv, ct, aad)
		require.ErrorIs(t, err, sealtype.ErrDecryption)
		require.ErrorIs(t, err, sealtype.ErrAuthentication)
	}
}

func TestTamperedChunk(t *testing.T) {
	t.Parallel()

	iv, err := NewIV()
	require.NoError(t, err)
	key := testutil.Key(3)
	plain := bytes.Repeat([]byte("x"), 2*ChunkSize+5)
	ct := seal(t, AES256GCM, key, iv, plain)

	for _, pos := range []int{0, ChunkSize + TagSize + 3, len(ct) - 1} {
		tampered := bytes.Clone(ct)
		tampered[pos] ^= 0x01
		_, err := open(AES256GCM, key, iv, tampered, aad)
		require.ErrorIs(t, err, sealtype.ErrDecryption, "flip at %d", pos)
	}
}

func TestHeaderIsAuthenticated(t *testing.T) {
	t.Parallel()

	iv, err := NewIV()
	require.NoError(t, err)
	key := testutil.Key(4)
	ct := seal(t, ChaCha20Poly1305, key, iv, []byte("payload"))

	_, err = open(ChaCha20Poly1305, key, iv, ct, []byte("different header"))
	require.ErrorIs(t, err, sealtype.ErrDecryption)

	otherIV := iv
	otherIV[15] ^= 0xff
	_, err = open(ChaCha20Poly1305, key, otherIV, ct, aad)
	require.ErrorIs(t, err, sealtype.ErrDecryption)
}

func TestDroppedFinalChunk(t *testing.T) {
	t.Parallel()

	iv, err := NewIV()
	require.NoError(t, err)
	key := testutil.Key(5)
	ct := seal(t, AES256GCM, key, iv, bytes.Repeat([]byte("y"), 2*ChunkSize+1))

	// Presenting the first two chunks as the whole stream makes chunk 1 look
	// final, which it was not sealed as.
	_, err = open(AES256GCM, key, iv, ct[:2*(ChunkSize+TagSize)], aad)
	require.ErrorIs(t, err, sealtype.ErrDecryption)
}

func TestTruncatedStream(t *testing.T) {
	t.Parallel()

	iv, err := NewIV()
	require.NoError(t, err)
	key := testutil.Key(6)
	ct := seal(t, AES256GCM, key, iv, []byte("hello world"))

	r, err := NewReader(bytes.NewReader(ct[:len(ct)-4]), AES256GCM, key, iv, aad, uint64(len(ct)))
	require.NoError(t, err)
	_, err = io.ReadAll(r)
	require.ErrorIs(t, err, sealtype.ErrCorruptArchive)
}

func TestInvalidKey(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(io.Discard, AES256GCM, []byte("short"), IV{}, nil)
	require.ErrorIs(t, err, sealtype.ErrInvalidKey)
	_, err = NewReader(bytes.NewReader(nil), ChaCha20Poly1305, make([]byte, 16), IV{}, nil, 0)
	require.ErrorIs(t, err, sealtype.ErrInvalidKey)
	require.NoError(t, ValidateKey(None, nil))
}

func TestNonePassthrough(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, None, nil, IV{}, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte("plain"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "plain", buf.String())

	got, err := open(None, nil, IV{}, []byte("plain and more"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain and more", string(got))
}

func TestFreshIVs(t *testing.T) {
	t.Parallel()

	a, err := NewIV()
	require.NoError(t, err)
	b, err := NewIV()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
