package main

import (
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func newPutCmd(a *app) *cobra.Command {
	var expect string

	cmd := &cobra.Command{
		Use:   "put [file|-]",
		Short: "Store content and print its digest",
		Long: `Store the content of a file (or stdin when the argument is "-" or omitted)
and print its digest.

With --expect, the content is hashed with the algorithm of the expected digest
and nothing is stored unless the two digests match.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				src = f
			}

			dgst, err := a.store.WriteContent(cmd.Context(), src, digest.Digest(expect))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), dgst)
			return err
		},
	}

	cmd.Flags().StringVar(&expect, "expect", "", "Expected digest; the write fails unless the content matches")
	return cmd
}
