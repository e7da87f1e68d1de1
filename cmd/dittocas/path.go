package main

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func newPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path <digest>",
		Short: "Print where an entry lives on disk",
		Long: `Print the addressed path of a digest below the cache root. The entry
does not have to exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.store.EntryPath(digest.Digest(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
			return err
		},
	}
}
