package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"

	"github.com/meigma/seal"
)

type config struct {
	mode        string
	files       int
	fileSize    int
	dirCount    int
	compression string
	encrypt     bool
	workers     int
	pattern     string
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	tempDir     string
	keepTemp    bool
	randomSeed  int64
}

//nolint:unused // sink variable prevents compiler optimizations in profiling
var sinkSummary *seal.Summary

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	srcDir := filepath.Join(dir, "src")
	if err := makeFiles(srcDir, cfg.files, cfg.fileSize, cfg.dirCount, cfg.pattern, cfg.randomSeed); err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	packOpts, unpackOpts, err := options(cfg)
	if err != nil {
		log.Fatal(err)
	}
	archive, err := seal.Pack(context.Background(), srcDir, packOpts...)
	if err != nil {
		log.Fatal(err)
	}

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, dir, srcDir, archive, packOpts, unpackOpts)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   uint64
	elapsed time.Duration
}

// runProfile repeats one archive operation until the iteration count or
// duration is reached. bytes counts uncompressed body bytes processed.
//
//nolint:gocritic // hugeParam acceptable for profiler config
func runProfile(cfg config, workDir, srcDir string, archive []byte, packOpts []seal.PackOption, unpackOpts []seal.UnpackOption) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	ops := 0
	var byteCount uint64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "pack":
		for shouldContinue() {
			sum, err := seal.PackTo(ctx, srcDir, io.Discard, packOpts...)
			if err != nil {
				return profileStats{}, err
			}
			sinkSummary = sum
			byteCount += sum.Manifest.UncompressedSize
			ops++
		}

	case "pack-file":
		dest := filepath.Join(workDir, "archive.seal")
		for shouldContinue() {
			sum, err := seal.PackFile(ctx, srcDir, dest, packOpts...)
			if err != nil {
				return profileStats{}, err
			}
			sinkSummary = sum
			byteCount += sum.Manifest.UncompressedSize
			ops++
		}

	case "verify":
		for shouldContinue() {
			sum, err := seal.Verify(ctx, archive, unpackOpts...)
			if err != nil {
				return profileStats{}, err
			}
			sinkSummary = sum
			byteCount += sum.Manifest.UncompressedSize
			ops++
		}

	case "unpack":
		for shouldContinue() {
			dest := filepath.Join(workDir, "out", fmt.Sprintf("iter-%d", ops))
			res, err := seal.Unpack(ctx, archive, dest, unpackOpts...)
			if err != nil {
				return profileStats{}, err
			}
			if err := os.RemoveAll(dest); err != nil {
				return profileStats{}, err
			}
			sinkSummary = &res.Summary
			byteCount += res.Manifest.UncompressedSize
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.mode, "mode", "pack", "mode: pack, pack-file, verify, unpack")
	flag.IntVar(&cfg.files, "files", 512, "number of files")
	flag.IntVar(&cfg.fileSize, "file-size", 16<<10, "file size in bytes")
	flag.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	flag.StringVar(&cfg.compression, "compression", "deflate", "compression: none, deflate, zstd or lz4")
	flag.BoolVar(&cfg.encrypt, "encrypt", false, "encrypt with a random AES-256-GCM key")
	flag.IntVar(&cfg.workers, "workers", 0, "pack read-ahead workers: <=1 serial, 0 auto, >1 fixed")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.Parse()
	return cfg
}

//nolint:gocritic // hugeParam acceptable for profiler config
func options(cfg config) ([]seal.PackOption, []seal.UnpackOption, error) {
	compression, err := parseCompression(cfg.compression)
	if err != nil {
		return nil, nil, err
	}
	packOpts := []seal.PackOption{
		seal.PackWithCompression(compression),
		seal.PackWithWorkers(cfg.workers),
	}
	var unpackOpts []seal.UnpackOption
	if cfg.encrypt {
		key, err := seal.GenerateKey()
		if err != nil {
			return nil, nil, err
		}
		packOpts = append(packOpts, seal.PackWithKey(key))
		unpackOpts = append(unpackOpts, seal.UnpackWithKey(key))
	}
	return packOpts, unpackOpts, nil
}

func parseCompression(name string) (seal.Compression, error) {
	switch name {
	case "none":
		return seal.CompressionNone, nil
	case "deflate":
		return seal.CompressionDeflate, nil
	case "zstd":
		return seal.CompressionZstd, nil
	case "lz4":
		return seal.CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %s", name)
	}
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "seal-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func makeFiles(dir string, fileCount, fileSize, dirCount int, pattern string, seed int64) error {
	if dirCount <= 0 {
		dirCount = 1
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return err
		}

		content := make([]byte, fileSize)
		switch pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return err
		}
	}
	return nil
}
