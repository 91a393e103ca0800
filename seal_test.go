package seal

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/seal/internal/testutil"
)

// sampleTree covers the shapes a round trip must preserve.
func sampleTree() map[string]string {
	return map[string]string{
		"a.txt":                 "hello",
		"sub/b.txt":             "",
		"empty":                 testutil.Dir,
		"deep/1/2/3/4/5/6/7/x":  "deep file",
		"ünïcödé/日本語.txt":       "non-ascii",
		"big/random.bin":        string(randomBytes(200_000, 1)),
		"big/repetitive.txt":    string(bytes.Repeat([]byte("seal "), 30_000)),
		"names/a":               "1",
		"names/a b":             "2",
		"names/a.b":             "3",
		"names/a-b/c":           "4",
		"exactly-one-chunk.bin": string(randomBytes(64<<10, 2)),
	}
}

func randomBytes(n int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}

// writeSampleTree creates sampleTree under a fresh directory and adds a
// relative symlink. It returns the directory and the expected ReadTree view.
func writeSampleTree(t *testing.T) (string, map[string]string) {
	t.Helper()
	dir := t.TempDir()
	files := sampleTree()
	testutil.WriteTree(t, dir, files)
	require.NoError(t, os.Symlink("../a.txt", filepath.Join(dir, "sub", "link")))

	want := testutil.ReadTree(t, dir)
	require.Equal(t, "-> ../a.txt", want["sub/link"])
	return dir, want
}
