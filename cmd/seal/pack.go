package main

import (
	"github.com/spf13/cobra"

	"github.com/meigma/seal"
)

func (a *app) packCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <dir> -o <archive>",
		Short: "Pack a directory tree into an archive",
		Long: `Pack walks dir, serializes every file, directory and symbolic link in
canonical order, compresses the result and, when a key file is configured,
encrypts it. The archive is written atomically: the output path never holds a
partial archive.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runPack,
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "archive path")
	f.String("compression", defaultConfig().Compression, "compression algorithm (none, deflate, zstd, lz4)")
	f.Int("level", 0, "compression level (0 uses the algorithm default)")
	f.String("cipher", "", "cipher (none, aes-256-gcm, chacha20-poly1305); defaults to aes-256-gcm when a key is set")
	f.String("key-file", "", "file holding a hex-encoded 32-byte key")
	f.Int("workers", 0, "files read ahead in parallel (0 picks automatically, 1 reads serially)")
	f.Uint64("read-ahead", 0, "bytes of file content buffered by read-ahead workers (0 uses the default)")
	f.Int("max-files", 0, "maximum number of entries (0 uses the default, negative disables the limit)")
	_ = cmd.MarkFlagRequired("output") //nolint:errcheck // flag is defined above

	return cmd
}

func (a *app) runPack(cmd *cobra.Command, args []string) error {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	opts, err := a.packOptions()
	if err != nil {
		return err
	}

	sum, err := seal.PackFile(cmd.Context(), args[0], out, opts...)
	if err != nil {
		return archiveError(err)
	}
	a.logger.Info("packed archive", "path", out, "entries", sum.Entries(), "digest", sum.Manifest.Digest.String())
	printSummary(a.stdout, out, sum)
	return nil
}

func (a *app) packOptions() ([]seal.PackOption, error) {
	compression, err := a.cfg.compression()
	if err != nil {
		return nil, err
	}
	opts := []seal.PackOption{
		seal.PackWithCompression(compression),
		seal.PackWithCompressionLevel(a.cfg.Level),
		seal.PackWithWorkers(a.cfg.Workers),
		seal.PackWithReadAheadBytes(a.cfg.ReadAhead),
		seal.PackWithMaxFiles(a.cfg.MaxFiles),
		seal.PackWithLogger(a.logger),
		seal.PackWithProgress(a.progress()),
	}

	cipher, ok, err := a.cfg.cipher()
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, seal.PackWithCipher(cipher))
	}
	key, err := a.cfg.key()
	if err != nil {
		return nil, archiveError(err)
	}
	if key != nil {
		opts = append(opts, seal.PackWithKey(key))
	}
	return opts, nil
}
