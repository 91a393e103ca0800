package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/seal"
)

func (a *app) unpackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack <archive> <dest>",
		Short: "Verify an archive and restore its tree under dest",
		Long: `Unpack authenticates, decompresses and checks the digest of the whole
archive before touching dest. Only a fully verified archive is restored.

Permission and symbolic link failures are reported as warnings unless
--strict-permissions is set.`,
		Args: cobra.ExactArgs(2),
		RunE: a.runUnpack,
	}

	f := cmd.Flags()
	f.String("key-file", "", "file holding a hex-encoded 32-byte key")
	f.Bool("strict-permissions", false, "fail when permissions or symlinks cannot be restored")
	f.Uint64("max-body-size", 0, "reject archives whose body exceeds this many bytes (0 disables the limit)")

	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Check an archive completely without restoring it",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runVerify,
	}

	f := cmd.Flags()
	f.String("key-file", "", "file holding a hex-encoded 32-byte key")
	f.Uint64("max-body-size", 0, "reject archives whose body exceeds this many bytes (0 disables the limit)")

	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Print an archive manifest without reading the body",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runInspect,
	}
}

func (a *app) unpackOptions() ([]seal.UnpackOption, error) {
	opts := []seal.UnpackOption{
		seal.UnpackWithStrictPermissions(a.cfg.StrictPermissions),
		seal.UnpackWithMaxBodySize(a.cfg.MaxBodySize),
		seal.UnpackWithLogger(a.logger),
		seal.UnpackWithProgress(a.progress()),
	}
	key, err := a.cfg.key()
	if err != nil {
		return nil, archiveError(err)
	}
	if key != nil {
		opts = append(opts, seal.UnpackWithKey(key))
	}
	return opts, nil
}

func (a *app) runUnpack(cmd *cobra.Command, args []string) error {
	opts, err := a.unpackOptions()
	if err != nil {
		return err
	}
	res, err := seal.UnpackFile(cmd.Context(), args[0], args[1], opts...)
	if err != nil {
		return archiveError(err)
	}
	for _, w := range res.Warnings {
		a.logger.Warn("restore step skipped", "path", w.Path, "op", w.Op, "err", w.Err)
	}
	printSummary(a.stdout, args[0], &res.Summary)
	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(a.stdout, "%-12s %d\n", "warnings", n)
	}
	return nil
}

func (a *app) runVerify(cmd *cobra.Command, args []string) error {
	opts, err := a.unpackOptions()
	if err != nil {
		return err
	}
	sum, err := seal.VerifyFile(cmd.Context(), args[0], opts...)
	if err != nil {
		return archiveError(err)
	}
	printSummary(a.stdout, args[0], sum)
	return nil
}

func (a *app) runInspect(_ *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return archiveError(err)
	}
	defer f.Close()

	m, err := seal.ReadManifest(f)
	if err != nil {
		return archiveError(err)
	}
	fmt.Fprintf(a.stdout, "%-12s %d\n", "version", m.Version)
	fmt.Fprintf(a.stdout, "%-12s %s\n", "compression", m.Compression)
	fmt.Fprintf(a.stdout, "%-12s %s\n", "cipher", m.Cipher)
	fmt.Fprintf(a.stdout, "%-12s %s\n", "digest", m.Digest)
	fmt.Fprintf(a.stdout, "%-12s %d bytes\n", "content", m.UncompressedSize)
	fmt.Fprintf(a.stdout, "%-12s %d bytes\n", "body", m.BodySize)
	return nil
}
