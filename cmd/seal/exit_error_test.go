package main

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meigma/seal"
)

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"walk", &seal.WalkError{Path: "a", Err: fs.ErrPermission}, exitIO},
		{"restore", &seal.RestoreError{Path: "a", Err: fs.ErrExist}, exitIO},
		{"path error", &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}, exitIO},
		{"corrupt", seal.ErrCorruptArchive, exitCorrupt},
		{"decompression", seal.ErrDecompression, exitCorrupt},
		{"integrity", &seal.IntegrityError{}, exitIntegrity},
		{"decryption", fmt.Errorf("chunk 0: %w", seal.ErrDecryption), exitCrypto},
		{"key required", seal.ErrKeyRequired, exitCrypto},
		{"invalid key", seal.ErrInvalidKey, exitCrypto},
		{"other", errors.New("boom"), exitOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, exitCode(archiveError(tt.err)))
		})
	}
}

func TestExitErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("pack: %w", archiveError(seal.ErrKeyRequired))
	assert.Equal(t, exitCrypto, exitCode(err))
	assert.ErrorIs(t, err, seal.ErrKeyRequired)
	assert.Equal(t, seal.ErrKeyRequired.Error(), (&ExitError{Code: exitCrypto, Err: seal.ErrKeyRequired}).Error())
	assert.Equal(t, "exit status 3", (&ExitError{Code: exitCorrupt}).Error())
	assert.Equal(t, exitOther, exitCode(errors.New("usage")))
}
