package main

import (
	"errors"
	"fmt"

	"github.com/meigma/seal"
)

// Process exit codes. Each archive error kind gets its own code so scripts
// can tell a bad key from a damaged archive.
const (
	exitOK        = 0
	exitOther     = 1
	exitIO        = 2
	exitCorrupt   = 3
	exitIntegrity = 4
	exitCrypto    = 5
)

// ExitError carries the exit code for a failed command without forcing
// os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// archiveError wraps a library error with the exit code for its kind.
func archiveError(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: exitCodeFor(seal.Classify(err)), Err: err}
}

func exitCodeFor(kind seal.ErrorKind) int {
	switch kind {
	case seal.ErrorKindNone:
		return exitOK
	case seal.ErrorKindIO:
		return exitIO
	case seal.ErrorKindCorrupt:
		return exitCorrupt
	case seal.ErrorKindIntegrity:
		return exitIntegrity
	case seal.ErrorKindCrypto:
		return exitCrypto
	default:
		return exitOther
	}
}

// exitCode returns the process exit code for an error returned by the root
// command. Usage errors and anything unclassified exit with exitOther.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitOther
}
