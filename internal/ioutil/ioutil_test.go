package ioutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingReaderWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cr := &CountingReader{R: strings.NewReader("hello world")}
	cw := &CountingWriter{W: &out}

	_, err := io.Copy(cw, cr)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), cr.N)
	assert.Equal(t, uint64(11), cw.N)
	assert.Equal(t, "hello world", out.String())
}

func TestCountingWriterOverflow(t *testing.T) {
	t.Parallel()

	cw := &CountingWriter{W: io.Discard, N: ^uint64(0) - 1}
	_, err := cw.Write([]byte("abc"))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCopyWithContext(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	n, err := CopyWithContext(context.Background(), &out, strings.NewReader("payload"), make([]byte, 2))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, "payload", out.String())
}

func TestCopyWithContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CopyWithContext(ctx, io.Discard, strings.NewReader("payload"), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestErrReaderKeepsFirstError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	er := &ErrReader{R: io.MultiReader(strings.NewReader("ab"), &failingReader{err: cause})}

	_, err := io.ReadAll(er)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, er.Err)
}

type failingReader struct{ err error }

func (f *failingReader) Read([]byte) (int, error) { return 0, f.err }
