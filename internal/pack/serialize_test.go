package pack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/testutil"
	"github.com/meigma/seal/internal/walk"
)

// memSource serves file records from memory.
type memSource struct {
	recs    []Record
	data    map[string]string
	openErr map[string]error
	opens   atomic.Int64
}

func newMemSource(files map[string]string) *memSource {
	s := &memSource{data: files, openErr: map[string]error{}}
	for _, path := range slices.Sorted(maps.Keys(files)) {
		s.recs = append(s.recs, Record{
			Path: path,
			Kind: sealtype.KindFile,
			Mode: 0o644,
			Size: uint64(len(files[path])),
		})
	}
	return s
}

func (s *memSource) Records() []Record { return s.recs }

func (s *memSource) Open(rec *Record) (io.ReadCloser, error) {
	s.opens.Add(1)
	if err := s.openErr[rec.Path]; err != nil {
		return nil, &sealtype.WalkError{Path: rec.Path, Err: err}
	}
	return io.NopCloser(strings.NewReader(s.data[rec.Path])), nil
}

func mixedFiles() map[string]string {
	files := make(map[string]string)
	for i := range 40 {
		size := (i * 977) % 5000
		if i%7 == 0 {
			size = 20_000
		}
		files[fmt.Sprintf("dir%d/file%02d.bin", i%3, i)] = strings.Repeat(string(rune('a'+i%26)), size)
	}
	files["empty"] = ""
	return files
}

func TestSerializeDeterministicAcrossWorkers(t *testing.T) {
	t.Parallel()

	files := mixedFiles()
	var want []byte
	configs := []struct {
		workers   int
		readAhead uint64
	}{
		{1, 0},
		{2, 0},
		{4, 1 << 10},
		{8, 8 << 10},
		{16, 64 << 10},
		{0, 0},
	}
	for _, cfg := range configs {
		var buf bytes.Buffer
		stats, err := Serialize(context.Background(), newMemSource(files), &buf,
			WithWorkers(cfg.workers), WithReadAheadBytes(cfg.readAhead))
		require.NoError(t, err, "workers=%d", cfg.workers)
		assert.Equal(t, len(files), stats.Files)
		assert.Equal(t, uint64(buf.Len()), stats.BodySize)
		if want == nil {
			want = buf.Bytes()
			continue
		}
		assert.Equal(t, want, buf.Bytes(), "workers=%d read-ahead=%d", cfg.workers, cfg.readAhead)
	}
}

func TestSerializeRoundTripsThroughReader(t *testing.T) {
	t.Parallel()

	files := mixedFiles()
	src := newMemSource(files)
	var buf bytes.Buffer
	stats, err := Serialize(context.Background(), src, &buf, WithWorkers(4), WithReadAheadBytes(4<<10))
	require.NoError(t, err)
	assert.Equal(t, EncodedSize(src.Records()), stats.BodySize)

	var total uint64
	for _, c := range files {
		total += uint64(len(c))
	}
	assert.Equal(t, total, stats.ContentBytes)

	rd := NewReader(&buf, stats.BodySize)
	got := make(map[string]string)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(rd)
		require.NoError(t, err)
		got[rec.Path] = string(data)
	}
	assert.Equal(t, files, got)
}

func TestSerializeOnRecord(t *testing.T) {
	t.Parallel()

	src := newMemSource(map[string]string{"a": "1", "b": "22", "c": "333"})
	var paths []string
	var last Stats
	_, err := Serialize(context.Background(), src, io.Discard, WithWorkers(3),
		WithOnRecord(func(rec *Record, stats *Stats) {
			paths = append(paths, rec.Path)
			last = *stats
		}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, paths)
	assert.Equal(t, 3, last.Files)
	assert.Equal(t, uint64(6), last.ContentBytes)
}

func TestSerializeSourceChanged(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			src := newMemSource(mixedFiles())
			src.data["dir1/file01.bin"] = "short"

			_, err := Serialize(context.Background(), src, io.Discard, WithWorkers(workers))
			var walkErr *sealtype.WalkError
			require.ErrorAs(t, err, &walkErr)
			assert.Equal(t, "dir1/file01.bin", walkErr.Path)
		})
	}
}

func TestSerializeOpenError(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			boom := errors.New("permission denied")
			src := newMemSource(mixedFiles())
			src.openErr["dir2/file14.bin"] = boom

			_, err := Serialize(context.Background(), src, io.Discard, WithWorkers(workers), WithReadAheadBytes(2<<10))
			require.ErrorIs(t, err, boom)
			require.ErrorIs(t, err, sealtype.ErrWalk)
		})
	}
}

type failingWriter struct {
	after int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.after {
		return 0, errors.New("disk full")
	}
	w.n += len(p)
	return len(p), nil
}

func TestSerializeSinkError(t *testing.T) {
	t.Parallel()

	_, err := Serialize(context.Background(), newMemSource(mixedFiles()), &failingWriter{after: 10_000}, WithWorkers(4))
	require.ErrorContains(t, err, "disk full")
	require.NotErrorIs(t, err, sealtype.ErrWalk)
}

func TestSerializeCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		_, err := Serialize(ctx, newMemSource(mixedFiles()), io.Discard, WithWorkers(workers))
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestSerializeWalkedTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"a.txt":     "hello",
		"sub/b.txt": "",
		"sub/deep":  testutil.Dir,
	})
	tree, err := walk.Walk(context.Background(), dir)
	require.NoError(t, err)
	defer tree.Close()

	var buf bytes.Buffer
	stats, err := Serialize(context.Background(), tree, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 2, stats.Dirs)
	assert.Equal(t, EncodedSize(tree.Records()), uint64(buf.Len()))
}
