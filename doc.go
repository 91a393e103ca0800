// Package seal packs a directory tree into a single self-verifying archive
// and restores it.
//
// An archive is a fixed 72-byte manifest followed by a body. The body is the
// deterministic serialization of the tree (see internal/pack), compressed
// and optionally encrypted. The manifest records the algorithms used, the
// initialization vector, the SHA-256 digest of the uncompressed body and
// both body lengths.
//
// # Quick Start
//
// Pack a directory to a file and restore it elsewhere:
//
//	key, err := seal.GenerateKey()
//	if err != nil {
//	    return err
//	}
//	sum, err := seal.PackFile(ctx, "./src", "src.seal", seal.PackWithKey(key))
//	if err != nil {
//	    return err
//	}
//	res, err := seal.UnpackFile(ctx, "src.seal", "./restored", seal.UnpackWithKey(key))
//
// # Determinism
//
// Packing the same tree twice with the same options yields identical bodies
// and identical digests. Without a key the whole archive is byte-identical;
// with a key only the IV and ciphertext differ, because every archive gets a
// fresh IV.
//
// # Verification
//
// Unpack verifies the complete body (authentication, decompression, digest
// and record framing) before it writes anything to the destination. A wrong
// key, a tampered byte or a truncated file therefore never leaves partial,
// trusted-looking output behind. Use [Classify] to tell cryptographic,
// integrity, corruption and I/O failures apart.
package seal
