package main

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <digest>...",
		Short: "Remove entries",
		Long: `Remove the entries stored under the given digests.

Removing an entry that does not exist succeeds. Every digest is attempted;
the command fails if any removal failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs error
			for _, arg := range args {
				if err := a.store.Delete(cmd.Context(), digest.Digest(arg)); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", arg, err))
				}
			}
			return errs
		},
	}
}
