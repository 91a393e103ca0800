// Package cipher wraps the archive body in a keyed, authenticated transform.
//
// The body is split into fixed-size chunks, each sealed independently with
// an AEAD. Chunk nonces are derived from the per-archive IV and the chunk
// index, and every chunk authenticates the archive header prefix, its index
// and whether it is the last chunk. Reordering, dropping or appending chunks
// therefore fails authentication just like modifying their bytes does.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/meigma/seal/internal/sealtype"
)

// Algorithm is an alias for sealtype.Cipher.
type Algorithm = sealtype.Cipher

// Re-export cipher ids.
const (
	None             = sealtype.CipherNone
	AES256GCM        = sealtype.CipherAES256GCM
	ChaCha20Poly1305 = sealtype.CipherChaCha20Poly1305
)

const (
	// KeySize is the required key length in bytes.
	KeySize = 32

	// IVSize is the length of the per-archive initialization vector.
	IVSize = 16

	// ChunkSize is the plaintext size of every chunk except the last.
	ChunkSize = 64 << 10

	// TagSize is the authentication tag length appended to each chunk.
	TagSize = 16

	nonceSize = 12
)

// IV is a per-archive initialization vector.
type IV [IVSize]byte

// NewIV returns a fresh random IV.
func NewIV() (IV, error) {
	var iv IV
	if _, err := rand.Read(iv[:]); err != nil {
		return iv, fmt.Errorf("generate iv: %w", err)
	}
	return iv, nil
}

// ValidateKey checks that key is usable with alg.
func ValidateKey(alg Algorithm, key []byte) error {
	if alg == None {
		return nil
	}
	if len(key) != KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", sealtype.ErrInvalidKey, len(key), KeySize)
	}
	return nil
}

func newAEAD(alg Algorithm, key []byte) (stdcipher.AEAD, error) {
	if err := ValidateKey(alg, key); err != nil {
		return nil, err
	}
	switch alg {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sealtype.ErrInvalidKey, err)
		}
		return stdcipher.NewGCM(block)
	case ChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", sealtype.ErrInvalidKey, err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unknown cipher: %d", alg)
	}
}

// SealedSize returns the ciphertext length for n bytes of plaintext.
// Returns false on overflow.
func SealedSize(alg Algorithm, n uint64) (uint64, bool) {
	if alg == None {
		return n, true
	}
	chunks := n / ChunkSize
	if n%ChunkSize != 0 || n == 0 {
		chunks++
	}
	overhead := chunks * TagSize
	total := n + overhead
	if total < n {
		return 0, false
	}
	return total, true
}

// chunkState derives per-chunk nonces and additional data.
type chunkState struct {
	aead  stdcipher.AEAD
	iv    IV
	aad   []byte
	index uint64
	nonce [nonceSize]byte
	ad    []byte
}

func newChunkState(aead stdcipher.AEAD, iv IV, aad []byte) *chunkState {
	s := &chunkState{aead: aead, iv: iv}
	s.aad = append(s.aad, aad...)
	s.ad = make([]byte, 0, len(aad)+9)
	return s
}

// next prepares the nonce and additional data for the current chunk.
func (s *chunkState) next(final bool) ([]byte, []byte) {
	copy(s.nonce[:], s.iv[:nonceSize])
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], s.index)
	for i := range ctr {
		s.nonce[nonceSize-8+i] ^= ctr[i]
	}

	s.ad = append(s.ad[:0], s.aad...)
	s.ad = binary.BigEndian.AppendUint64(s.ad, s.index)
	if final {
		s.ad = append(s.ad, 1)
	} else {
		s.ad = append(s.ad, 0)
	}
	return s.nonce[:], s.ad
}

// Writer encrypts a plaintext stream in chunks.
type Writer struct {
	w      io.Writer
	state  *chunkState
	buf    []byte
	out    []byte
	closed bool
	err    error
}

// NewWriter returns a writer that encrypts to w with alg. For None it
// returns a passthrough. aad is authenticated by every chunk. Close must be
// called to seal the final chunk; it does not close w.
func NewWriter(w io.Writer, alg Algorithm, key []byte, iv IV, aad []byte) (io.WriteCloser, error) {
	if alg == None {
		return nopWriteCloser{w}, nil
	}
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	return &Writer{
		w:     w,
		state: newChunkState(aead, iv, aad),
		buf:   make([]byte, 0, ChunkSize),
		out:   make([]byte, 0, ChunkSize+TagSize),
	}, nil
}

// Write implements io.Writer. A full chunk is held back until more data
// arrives so the last chunk can be flagged on Close.
func (cw *Writer) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	if cw.closed {
		return 0, errors.New("write to closed cipher writer")
	}
	written := 0
	for len(p) > 0 {
		if len(cw.buf) == ChunkSize {
			if err := cw.seal(false); err != nil {
				return written, err
			}
		}
		n := copy(cw.buf[len(cw.buf):ChunkSize], p)
		cw.buf = cw.buf[:len(cw.buf)+n]
		p = p[n:]
		written += n
	}
	return written, nil
}

// Close seals the final chunk.
func (cw *Writer) Close() error {
	if cw.closed {
		return cw.err
	}
	cw.closed = true
	if cw.err != nil {
		return cw.err
	}
	return cw.seal(true)
}

func (cw *Writer) seal(final bool) error {
	nonce, ad := cw.state.next(final)
	cw.out = cw.state.aead.Seal(cw.out[:0], nonce, cw.buf, ad)
	cw.buf = cw.buf[:0]
	cw.state.index++
	if _, err := cw.w.Write(cw.out); err != nil {
		cw.err = err
		return err
	}
	return nil
}

// Reader decrypts and authenticates a chunked ciphertext stream.
type Reader struct {
	r         io.Reader
	state     *chunkState
	remaining uint64
	size      uint64
	chunk     []byte
	plain     []byte
	pos       int
	done      bool
	err       error
}

// NewReader returns a reader that decrypts size bytes of ciphertext from r.
// For None it returns r limited to size bytes.
//
// Authentication failures are reported as sealtype.ErrDecryption. A stream
// shorter than size is reported as sealtype.ErrCorruptArchive.
func NewReader(r io.Reader, alg Algorithm, key []byte, iv IV, aad []byte, size uint64) (io.Reader, error) {
	if alg == None {
		return &io.LimitedReader{R: r, N: int64(min(size, uint64(1<<63-1)))}, nil //nolint:gosec // clamped above
	}
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:         r,
		state:     newChunkState(aead, iv, aad),
		remaining: size,
		size:      size,
		chunk:     make([]byte, ChunkSize+TagSize),
	}, nil
}

// Read implements io.Reader.
func (cr *Reader) Read(p []byte) (int, error) {
	for cr.pos == len(cr.plain) {
		if cr.err != nil {
			return 0, cr.err
		}
		if cr.done {
			return 0, io.EOF
		}
		cr.err = cr.open()
	}
	n := copy(p, cr.plain[cr.pos:])
	cr.pos += n
	return n, nil
}

func (cr *Reader) open() error {
	const full = ChunkSize + TagSize
	n := uint64(full)
	final := cr.remaining <= full
	if final {
		n = cr.remaining
	}
	offset := cr.size - cr.remaining
	if n < TagSize {
		return fmt.Errorf("%w: chunk %d at offset %d is shorter than its tag", sealtype.ErrDecryption, cr.state.index, offset)
	}

	ct := cr.chunk[:n]
	if _, err := io.ReadFull(cr.r, ct); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return &sealtype.CorruptError{Offset: offset, Reason: "truncated ciphertext", Err: err}
		}
		return err
	}

	nonce, ad := cr.state.next(final)
	plain, err := cr.state.aead.Open(cr.plain[:0], nonce, ct, ad)
	if err != nil {
		return fmt.Errorf("%w: chunk %d at offset %d: message authentication failed", sealtype.ErrDecryption, cr.state.index, offset)
	}
	cr.plain = plain
	cr.pos = 0
	cr.remaining -= n
	cr.state.index++
	cr.done = final
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
