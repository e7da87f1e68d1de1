package main

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittocas/pkg/content"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [digest...]",
		Short: "Check entries against their digests",
		Long: `Re-hash entries and compare them with their digests. Without arguments
every stored entry is checked.

Corrupted entries are reported, never repaired; run "dittocas gc" with
gc.verify_content enabled to remove them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			ids := make([]digest.Digest, 0, len(args))
			for _, arg := range args {
				ids = append(ids, digest.Digest(arg))
			}
			if len(ids) == 0 {
				all, err := a.store.ListAllContent(ctx)
				if err != nil {
					return err
				}
				ids = all
			}

			var (
				firstErr          error
				failed, corrupted int
			)
			for _, id := range ids {
				err := a.store.Verify(ctx, id)
				switch {
				case err == nil:
					_, _ = fmt.Fprintf(out, "ok       %s\n", id)
					continue
				case errors.Is(err, content.ErrIntegrityMismatch):
					corrupted++
					_, _ = fmt.Fprintf(out, "corrupt  %s\n", id)
				case errors.Is(err, content.ErrContentNotFound):
					_, _ = fmt.Fprintf(out, "missing  %s\n", id)
				default:
					if ctx.Err() != nil {
						return ctx.Err()
					}
					_, _ = fmt.Fprintf(out, "error    %s: %v\n", id, err)
				}
				failed++
				if firstErr == nil {
					firstErr = err
				}
			}

			if firstErr != nil {
				return fmt.Errorf("%d of %d entries failed verification (%d corrupted): %w",
					failed, len(ids), corrupted, firstErr)
			}
			return nil
		},
	}
}
