package pack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/seal/internal/sealtype"
	"github.com/meigma/seal/internal/sizing"
)

const (
	// DefaultReadAheadBytes caps the file content buffered ahead of the writer.
	DefaultReadAheadBytes = 32 << 20

	// maxBufferedFile is the largest file read ahead of the writer. Larger
	// files are streamed when their turn comes.
	maxBufferedFile = 4 << 20

	maxAutoWorkers = 8
)

// Source provides records in canonical order and their file contents.
type Source interface {
	Records() []Record
	Open(rec *Record) (io.ReadCloser, error)
}

type serializeConfig struct {
	workers        int
	readAheadBytes uint64
	onRecord       func(rec *Record, stats *Stats)
	logger         *slog.Logger
}

// SerializeOption configures Serialize.
type SerializeOption func(*serializeConfig)

// WithWorkers sets the number of goroutines reading file contents ahead of
// the writer. Values <= 1 read serially. Zero picks a count from GOMAXPROCS.
func WithWorkers(n int) SerializeOption {
	return func(c *serializeConfig) {
		c.workers = n
	}
}

// WithReadAheadBytes caps the total size of file contents buffered ahead of
// the writer. Zero uses DefaultReadAheadBytes.
func WithReadAheadBytes(limit uint64) SerializeOption {
	return func(c *serializeConfig) {
		c.readAheadBytes = limit
	}
}

// WithOnRecord registers a callback invoked after each record is written.
// It runs on the writing goroutine.
func WithOnRecord(fn func(rec *Record, stats *Stats)) SerializeOption {
	return func(c *serializeConfig) {
		c.onRecord = fn
	}
}

// WithLogger sets the logger for serialization.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) SerializeOption {
	return func(c *serializeConfig) {
		c.logger = logger
	}
}

// Serialize writes every record of src followed by the end marker to w.
//
// Output bytes depend only on the records and their contents: file reads
// may run concurrently, but records are always emitted in canonical order.
func Serialize(ctx context.Context, src Source, w io.Writer, opts ...SerializeOption) (Stats, error) {
	cfg := serializeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.workers
	if workers == 0 {
		workers = min(runtime.GOMAXPROCS(0), maxAutoWorkers)
	}
	budget := cfg.readAheadBytes
	if budget == 0 {
		budget = DefaultReadAheadBytes
	}

	s := &serializer{
		src:      src,
		records:  src.Records(),
		pw:       NewWriter(w),
		onRecord: cfg.onRecord,
	}

	var err error
	if workers > 1 && len(s.records) > 1 {
		cfg.logger.Debug("serializing", "records", len(s.records), "workers", workers, "read_ahead", budget)
		err = s.pipelined(ctx, workers, budget)
	} else {
		cfg.logger.Debug("serializing", "records", len(s.records), "workers", 1)
		err = s.sequential(ctx)
	}
	if err != nil {
		return s.stats, err
	}
	if err := s.pw.Close(); err != nil {
		return s.stats, err
	}
	s.stats.BodySize = s.pw.Offset()
	return s.stats, nil
}

type serializer struct {
	src      Source
	records  []Record
	pw       *Writer
	stats    Stats
	onRecord func(rec *Record, stats *Stats)
}

// emit writes record i. When buffered is set, data holds the file content
// already read by a prefetch worker; otherwise files are opened and streamed.
func (s *serializer) emit(ctx context.Context, i int, data []byte, buffered bool) error {
	rec := s.records[i]
	switch {
	case rec.Kind != sealtype.KindFile:
		if err := s.pw.WriteRecord(ctx, &rec, nil); err != nil {
			return err
		}
	case buffered:
		if err := s.pw.WriteRecord(ctx, &rec, bytes.NewReader(data)); err != nil {
			return err
		}
	default:
		rc, err := s.src.Open(&rec)
		if err != nil {
			return err
		}
		err = s.pw.WriteRecord(ctx, &rec, rc)
		_ = rc.Close() //nolint:errcheck // read-only file
		if err != nil {
			return err
		}
	}
	s.stats.Add(&rec)
	if s.onRecord != nil {
		s.onRecord(&rec, &s.stats)
	}
	return nil
}

func (s *serializer) sequential(ctx context.Context) error {
	for i := range s.records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.emit(ctx, i, nil, false); err != nil {
			return err
		}
	}
	return nil
}

// readTask is a record queued for the prefetch workers.
type readTask struct {
	index  int
	weight int64
	buffer bool
}

// readResult carries prefetched content back to the writer.
type readResult struct {
	readTask
	data []byte
}

// pipelined reads small files concurrently while the writer consumes them
// in order. The producer acquires read-ahead budget in record order and the
// writer releases it in the same order, so the record the writer waits for
// has always been granted its share.
//
//nolint:gocognit // producer, workers and ordered consumer share one errgroup
func (s *serializer) pipelined(ctx context.Context, workers int, budgetBytes uint64) error {
	limit, err := sizing.ToInt64(budgetBytes, sealtype.ErrSizeOverflow)
	if err != nil {
		return fmt.Errorf("pack: read-ahead budget: %w", err)
	}
	budget := semaphore.NewWeighted(limit)
	maxBuffered := min(uint64(maxBufferedFile), budgetBytes)

	readCh := make(chan readTask)
	readyCh := make(chan readResult, workers)
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(readCh)
		for i := range s.records {
			rec := &s.records[i]
			task := readTask{index: i}
			if rec.Kind == sealtype.KindFile && rec.Size <= maxBuffered {
				task.buffer = true
				task.weight = int64(rec.Size) //nolint:gosec // bounded by maxBuffered
				if err := budget.Acquire(ctx, task.weight); err != nil {
					return err
				}
			}
			select {
			case readCh <- task:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	readers, readCtx := errgroup.WithContext(ctx)
	for range workers {
		readers.Go(func() error {
			for task := range readCh {
				res := readResult{readTask: task}
				if task.buffer {
					data, err := s.readFile(&s.records[task.index])
					if err != nil {
						return err
					}
					res.data = data
				}
				select {
				case readyCh <- res:
				case <-readCtx.Done():
					return readCtx.Err()
				}
			}
			return nil
		})
	}
	eg.Go(func() error {
		defer close(readyCh)
		return readers.Wait()
	})

	eg.Go(func() error {
		next := 0
		pending := make(map[int]readResult, workers)
		for next < len(s.records) {
			select {
			case res, ok := <-readyCh:
				if !ok {
					if err := ctx.Err(); err != nil {
						return err
					}
					return errors.New("pack: read pipeline ended unexpectedly")
				}
				pending[res.index] = res
				for {
					res, ok := pending[next]
					if !ok {
						break
					}
					delete(pending, next)
					err := s.emit(ctx, next, res.data, res.buffer)
					if res.weight > 0 {
						budget.Release(res.weight)
					}
					if err != nil {
						return err
					}
					next++
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return eg.Wait()
}

// readFile reads exactly rec.Size bytes of a file's content.
func (s *serializer) readFile(rec *Record) ([]byte, error) {
	rc, err := s.src.Open(rec)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data := make([]byte, rec.Size)
	n, err := io.ReadFull(rc, data)
	switch {
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return nil, &sealtype.WalkError{
			Path: rec.Path,
			Err:  fmt.Errorf("file shrank during packing: read %d of %d bytes", n, rec.Size),
		}
	case err != nil:
		return nil, &sealtype.WalkError{Path: rec.Path, Err: err}
	}
	var probe [1]byte
	if k, _ := io.ReadFull(rc, probe[:]); k > 0 { //nolint:errcheck // only the byte count matters
		return nil, &sealtype.WalkError{Path: rec.Path, Err: fmt.Errorf("file grew during packing beyond %d bytes", rec.Size)}
	}
	return data, nil
}
