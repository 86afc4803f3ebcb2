package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"gridfetch/internal/health"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the grid is reachable",
		Long: `Queries the grid status endpoint and, when a session is configured,
the session's download listing. Prints the result as JSON.

Exits non-zero when the grid is unhealthy. A failing session check only
degrades the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker := health.NewChecker(a.cfg.HTTPTimeout)
			checker.Add("grid", a.client, true)
			if a.cfg.SessionID != "" {
				checker.Add("session", health.ProbeFunc(func(ctx context.Context) error {
					_, err := a.retriever.ListDownloads(ctx)
					return err
				}), false)
			}

			response := checker.Check(cmd.Context())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(response); err != nil {
				return err
			}
			if response.Status == health.StatusUnhealthy {
				return fmt.Errorf("grid is %s", response.Status)
			}
			return nil
		},
	}
}
