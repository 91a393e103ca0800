// Package digest computes the content digest of an archive body.
//
// The digest is SHA-256 over the uncompressed, unencrypted serialized body.
// Hashing is streaming: a Digester is an io.Writer fed as the body is
// produced or consumed, so bodies never need to be held in memory for
// hashing alone.
package digest

import (
	_ "crypto/sha256" // registers SHA-256 for go-digest
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	godigest "github.com/opencontainers/go-digest"
)

// Size is the digest length in bytes.
const Size = 32

// Algorithm is the hash algorithm used for body digests.
const Algorithm = godigest.SHA256

// Digest is a fixed-size SHA-256 body digest.
type Digest [Size]byte

// String returns the digest in "sha256:<hex>" form.
func (d Digest) String() string {
	return string(d.OCI())
}

// Hex returns the lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// OCI returns the digest as an OCI content digest.
func (d Digest) OCI() godigest.Digest {
	return godigest.NewDigestFromBytes(Algorithm, d[:])
}

// Parse parses a digest in "sha256:<hex>" form or as bare hex.
func Parse(s string) (Digest, error) {
	var d Digest
	od, err := godigest.Parse(s)
	if err != nil {
		od = godigest.NewDigestFromEncoded(Algorithm, s)
		if verr := od.Validate(); verr != nil {
			return d, fmt.Errorf("parse digest %q: %w", s, err)
		}
	}
	if od.Algorithm() != Algorithm {
		return d, fmt.Errorf("parse digest %q: unsupported algorithm %s", s, od.Algorithm())
	}
	raw, err := hex.DecodeString(od.Encoded())
	if err != nil || len(raw) != Size {
		return d, fmt.Errorf("parse digest %q: invalid encoding", s)
	}
	copy(d[:], raw)
	return d, nil
}

// Digester accumulates a digest over bytes written to it.
type Digester struct {
	h hash.Hash
}

// New returns an empty Digester.
func New() *Digester {
	return &Digester{h: Algorithm.Digester().Hash()}
}

// Write implements io.Writer. It never returns an error.
func (d *Digester) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Sum returns the digest of everything written so far.
func (d *Digester) Sum() Digest {
	var out Digest
	copy(out[:], d.h.Sum(nil))
	return out
}

// Of hashes everything read from r.
func Of(r io.Reader) (Digest, error) {
	d := New()
	if _, err := io.Copy(d, r); err != nil {
		return Digest{}, err
	}
	return d.Sum(), nil
}

// Bytes hashes p.
func Bytes(p []byte) Digest {
	d := New()
	_, _ = d.Write(p) //nolint:errcheck // hash writes never fail
	return d.Sum()
}
