package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/seal"
)

func (a *app) keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen [-o <file>]",
		Short: "Generate a random archive key",
		Long: `Keygen writes a new random 32-byte key, hex-encoded, to the output file
(created with mode 0600) or to stdout when no file is given.`,
		Args: cobra.NoArgs,
		RunE: a.runKeygen,
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "key file to create")
	f.Bool("force", false, "overwrite an existing key file")

	return cmd
}

func (a *app) runKeygen(cmd *cobra.Command, _ []string) error {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	key, err := seal.GenerateKey()
	if err != nil {
		return err
	}
	line := seal.EncodeKey(key) + "\n"
	if out == "" {
		_, err := fmt.Fprint(a.stdout, line)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(out, flags, 0o600)
	if err != nil {
		return archiveError(err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return archiveError(err)
	}
	if err := f.Close(); err != nil {
		return archiveError(err)
	}
	a.logger.Info("wrote key", "path", out)
	return nil
}
