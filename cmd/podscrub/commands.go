package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podscrub/internal/config"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func newStatusCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := client().status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, statusLine("daemon", "running", colorize, ansiGreen))
			if status.ActiveJob != nil {
				elapsed := time.Since(status.ActiveJob.AcquiredAt).Round(time.Second)
				fmt.Fprintln(out, statusLine("processing",
					fmt.Sprintf("%s:%s (%s)", status.ActiveJob.Slug, status.ActiveJob.EpisodeID, elapsed),
					colorize, ansiYellow))
			} else {
				fmt.Fprintln(out, statusLine("processing", "idle", colorize, ""))
			}
			fmt.Fprintln(out, statusLine("feeds", strconv.Itoa(status.Feeds), colorize, ""))
			for _, name := range []string{"processing", "processed", "failed"} {
				if count, ok := status.EpisodeCounts[name]; ok {
					fmt.Fprintln(out, statusLine("episodes "+name, strconv.Itoa(count), colorize, ""))
				}
			}
			return nil
		},
	}
}

func statusLine(label, value string, colorize bool, color string) string {
	line := fmt.Sprintf("  %-22s %s", label+":", value)
	if colorize && color != "" {
		return color + line + ansiReset
	}
	return line
}

func newFeedsCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "feeds",
		Short: "List configured podcast feeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			feeds, err := client().feeds(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(feeds))
			for _, f := range feeds {
				rows = append(rows, []string{f.Slug, f.ProxyURL, f.SourceURL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Slug", "Proxy URL", "Source URL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func newEpisodesCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "episodes <slug>",
		Short: "List tracked episodes for a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			episodes, err := client().episodes(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(episodes))
			for _, ep := range episodes {
				detail := ""
				switch {
				case ep.AdsRemoved != nil && ep.TimeSaved != nil:
					detail = fmt.Sprintf("%d ads, %.1f min saved", *ep.AdsRemoved, *ep.TimeSaved/60)
				case ep.ErrorMessage != "":
					detail = truncate(ep.ErrorMessage, 60)
				}
				rows = append(rows, []string{
					ep.EpisodeID,
					truncate(ep.Title, 48),
					ep.Status,
					ep.UpdatedAt.Local().Format("2006-01-02 15:04"),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Episode", "Title", "Status", "Updated", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func newReprocessCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <slug> <episode-id>",
		Short: "Reset an episode so the next request processes it again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().reprocess(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "episode %s:%s reset\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the default configuration file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return configCmd
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
