package main

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/spf13/cobra"
)

func newLsCmd(a *app) *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List stored digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ids, err := a.store.ListAllContent(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				if !long {
					_, _ = fmt.Fprintln(out, id)
					continue
				}

				size, err := a.store.GetContentSize(ctx, id)
				if errors.Is(err, content.ErrContentNotFound) {
					continue // removed since listing
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%12d  %s\n", size, id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Include entry sizes in bytes")
	return cmd
}
