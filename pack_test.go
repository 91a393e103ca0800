package seal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/seal/internal/pack"
	"github.com/meigma/seal/internal/testutil"
	"github.com/meigma/seal/internal/walk"
)

func TestPackConcreteScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a.txt": "hello", "sub/b.txt": ""})

	archive, err := Pack(ctx, src)
	require.NoError(t, err)

	m, err := ReadManifest(bytes.NewReader(archive))
	require.NoError(t, err)
	assert.Equal(t, CompressionDeflate, m.Compression)
	assert.Equal(t, CipherNone, m.Cipher)

	// a.txt (27) + sub (20) + sub/b.txt (26) + end marker (17)
	assert.Equal(t, uint64(90), m.UncompressedSize)
	tree, err := walk.Walk(ctx, src)
	require.NoError(t, err)
	defer tree.Close()
	assert.Equal(t, pack.EncodedSize(tree.Records()), m.UncompressedSize)

	dest := filepath.Join(t.TempDir(), "out")
	res, err := Unpack(ctx, archive, dest)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 1, res.Dirs)

	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	info, err := os.Stat(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Zero(t, info.Size())
}

func TestPackDeterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src, _ := writeSampleTree(t)

	first, err := Pack(ctx, src)
	require.NoError(t, err)
	second, err := Pack(ctx, src, PackWithWorkers(8), PackWithReadAheadBytes(64<<10))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	key := testutil.Key(1)
	a, err := Pack(ctx, src, PackWithKey(key))
	require.NoError(t, err)
	b, err := Pack(ctx, src, PackWithKey(key))
	require.NoError(t, err)

	ma, err := ReadManifest(bytes.NewReader(a))
	require.NoError(t, err)
	mb, err := ReadManifest(bytes.NewReader(b))
	require.NoError(t, err)
	plain, err := ReadManifest(bytes.NewReader(first))
	require.NoError(t, err)

	assert.Equal(t, plain.Digest, ma.Digest)
	assert.Equal(t, ma.Digest, mb.Digest)
	assert.Equal(t, ma.UncompressedSize, mb.UncompressedSize)
	assert.NotEqual(t, ma.IV, mb.IV, "every archive gets a fresh IV")
	assert.NotEqual(t, a[ManifestSize:], b[ManifestSize:])
}

func TestPackDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"f": "x"})

	archive, err := Pack(ctx, src, PackWithKey(testutil.Key(3)))
	require.NoError(t, err)
	m, err := ReadManifest(bytes.NewReader(archive))
	require.NoError(t, err)
	assert.Equal(t, CompressionDeflate, m.Compression)
	assert.Equal(t, CipherAES256GCM, m.Cipher)
	assert.True(t, m.Encrypted())
	assert.Equal(t, FormatVersion, m.Version)

	archive, err = Pack(ctx, src, PackWithCompression(CompressionNone))
	require.NoError(t, err)
	m, err = ReadManifest(bytes.NewReader(archive))
	require.NoError(t, err)
	assert.Equal(t, m.UncompressedSize, m.BodySize)
	assert.Len(t, archive, int(ManifestSize+m.BodySize))
}

func TestPackFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src, want := writeSampleTree(t)

	outDir := t.TempDir()
	dest := filepath.Join(outDir, "tree.seal")
	sum, err := PackFile(ctx, src, dest, PackWithCompression(CompressionZstd), PackWithKey(testutil.Key(2)))
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(sum.ArchiveSize()), info.Size())

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")

	verified, err := VerifyFile(ctx, dest, UnpackWithKey(testutil.Key(2)))
	require.NoError(t, err)
	assert.Equal(t, sum.Manifest, verified.Manifest)
	assert.Equal(t, sum.Entries(), verified.Entries())

	restored := t.TempDir()
	_, err = UnpackFile(ctx, dest, restored, UnpackWithKey(testutil.Key(2)))
	require.NoError(t, err)
	assert.Equal(t, want, testutil.ReadTree(t, restored))
}

func TestPackFileFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	_, err := PackFile(context.Background(), filepath.Join(t.TempDir(), "missing"), filepath.Join(outDir, "x.seal"))
	require.ErrorIs(t, err, ErrWalk)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPackTo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src, _ := writeSampleTree(t)

	var buf bytes.Buffer
	sum, err := PackTo(ctx, src, &buf, PackWithCompression(CompressionLZ4))
	require.NoError(t, err)
	assert.Equal(t, sum.ArchiveSize(), uint64(buf.Len()))

	direct, err := Pack(ctx, src, PackWithCompression(CompressionLZ4))
	require.NoError(t, err)
	assert.Equal(t, direct, buf.Bytes())
}

func TestPackErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a": "1", "b": "2", "c": "3"})

	tests := []struct {
		name string
		dir  string
		opts []PackOption
		want error
	}{
		{"cipher without key", src, []PackOption{PackWithCipher(CipherChaCha20Poly1305)}, ErrKeyRequired},
		{"short key", src, []PackOption{PackWithKey([]byte("short"))}, ErrInvalidKey},
		{"missing directory", filepath.Join(src, "nope"), nil, ErrWalk},
		{"too many files", src, []PackOption{PackWithMaxFiles(2)}, ErrTooManyFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Pack(ctx, tt.dir, tt.opts...)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Pack(ctx, src, PackWithCompression(Compression(42)))
	require.Error(t, err)
}

func TestPackCanceled(t *testing.T) {
	t.Parallel()
	src, _ := writeSampleTree(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Pack(ctx, src)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPackProgress(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"a": "hello", "d/b": "world!"})

	var events []ProgressEvent
	_, err := Pack(context.Background(), src, PackWithProgress(func(ev ProgressEvent) {
		events = append(events, ev)
	}))
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, StageWalking, events[0].Stage)
	assert.Equal(t, 3, events[0].EntriesTotal)
	assert.Equal(t, uint64(11), events[0].BytesTotal)

	last := events[len(events)-1]
	assert.Equal(t, StageEmitting, last.Stage)

	serialized := events[len(events)-2]
	assert.Equal(t, StageSerializing, serialized.Stage)
	assert.Equal(t, "d/b", serialized.Path)
	assert.Equal(t, 3, serialized.EntriesDone)
	assert.Equal(t, uint64(11), serialized.BytesDone)
}
