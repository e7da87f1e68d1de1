package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		output string
		verify bool
	)

	cmd := &cobra.Command{
		Use:   "get <digest>",
		Short: "Write stored content to stdout or a file",
		Long: `Write the entry stored under a digest to stdout, or to a file with -o.

With --verify the content is re-hashed while streaming and the command fails
if it no longer matches the digest. Output written to a file is removed in
that case; output written to stdout cannot be taken back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			id := digest.Digest(args[0])

			var r io.ReadCloser
			if verify {
				r, err = a.store.ReadContentVerified(ctx, id)
			} else {
				r, err = a.store.ReadContent(ctx, id)
			}
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, r.Close()) }()

			if output == "" || output == "-" {
				_, err = io.Copy(cmd.OutOrStdout(), r)
				return err
			}

			return writeFile(output, r)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify content against the digest while reading")
	return cmd
}

// outputMode is the permission of a new file written by get -o.
const outputMode os.FileMode = 0644

// writeFile copies r to path through a sibling temp file, so a failed or
// corrupted read never leaves a partial file at path. An existing file at
// path keeps its permissions.
func writeFile(path string, r io.Reader) (err error) {
	mode := outputMode
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}


	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	if err = f.Chmod(mode); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
