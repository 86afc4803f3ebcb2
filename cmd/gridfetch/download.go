package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Retrieve files the browser downloaded during a session",
		Long: `Retrieve files the browser downloaded during a session.

The session is taken from --session or session.id. Files are saved
under --downloads-dir.`,
	}
	cmd.AddCommand(newDownloadGetCmd(a))
	cmd.AddCommand(newDownloadListCmd(a))
	cmd.AddCommand(newDownloadAllCmd(a))
	return cmd
}

func newDownloadGetCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Wait for a downloaded file and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				err  error
			)
			if cmd.Flags().Changed("timeout") {
				path, err = a.manager.FetchWithTimeout(cmd.Context(), args[0], timeout)
			} else {
				path, err = a.manager.Fetch(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the file (default timeouts.page_load)")

	return cmd
}

func newDownloadListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the files downloaded in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.manager.FileNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newDownloadAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Save every file downloaded in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := a.manager.FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}
