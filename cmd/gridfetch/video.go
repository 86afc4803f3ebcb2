package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"gridfetch/internal/apperrors"
	"gridfetch/internal/artifact"
	"gridfetch/internal/poll"
)

func newVideoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Fetch or delete session videos recorded by the grid",
	}
	cmd.AddCommand(newVideoGetCmd(a))
	cmd.AddCommand(newVideoDeleteCmd(a))
	return cmd
}

type videoGetFlags struct {
	timeout time.Duration
	out     string
	force   bool
}

func newVideoGetCmd(a *app) *cobra.Command {
	var flags videoGetFlags

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Wait for a session video and save it",
		Long: `Polls the grid until the video <name>.mp4 is available or the timeout elapses.

The video is written to --out, or to <name>.mp4 in the current directory.
Use --out - to write it to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := a.requireVideo(flags.force); err != nil {
				return err
			}
			timeout := flags.timeout
			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.DriverTimeout
			}

			content, ok := a.retriever.FetchVideo(cmd.Context(), name, timeout)
			if !ok {
				return apperrors.VideoUnavailable(name, fmt.Errorf("%w after %s", poll.ErrTimeout, timeout))
			}

			if flags.out == "-" {
				_, err := cmd.OutOrStdout().Write(content)
				return err
			}
			out := flags.out
			if out == "" {
				out = name + artifact.VideoExtension
			}
			if err := a.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return apperrors.Internal("video.write", err)
			}
			if err := afero.WriteFile(a.fs, out, content, 0o644); err != nil {
				return apperrors.Internal("video.write", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "how long to wait for the video (default timeouts.driver)")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "output file, - for stdout")
	cmd.Flags().BoolVar(&flags.force, "force", false, "run even when video recording is disabled")

	return cmd
}

type videoDeleteFlags struct {
	timeout time.Duration
	force   bool
}

func newVideoDeleteCmd(a *app) *cobra.Command {
	var flags videoDeleteFlags

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a session video from the grid",
		Long: `Retries the delete until the grid accepts it or the timeout elapses.

A zero --timeout sends a single request and reports its error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := a.requireVideo(flags.force); err != nil {
				return err
			}
			timeout := flags.timeout
			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.DriverTimeout
			}

			if timeout == 0 {
				if err := a.retriever.RemoveVideo(cmd.Context(), name); err != nil {
					return err
				}
			} else if !a.retriever.DeleteVideo(cmd.Context(), name, timeout) {
				return apperrors.VideoUnavailable(name, fmt.Errorf("%w after %s", poll.ErrTimeout, timeout))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s%s\n", name, artifact.VideoExtension)
			return nil
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "how long to retry the delete (default timeouts.driver)")
	cmd.Flags().BoolVar(&flags.force, "force", false, "run even when video recording is disabled")

	return cmd
}

// requireVideo refuses video operations while recording is disabled.
func (a *app) requireVideo(force bool) error {
	if force {
		a.cfg.SetVideoEnabled(true)
	}
	if !a.cfg.VideoEnabled() {
		return apperrors.Validation("grid.video_enabled", "video recording is disabled, set grid.video_enabled or pass --force")
	}
	return nil
}
