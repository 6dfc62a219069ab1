package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/language"
	"pulpit/internal/store"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:     "videos",
		Aliases: []string{"video"},
		Short:   "Inspect and manage catalog videos",
	}
	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosReingestCommand(ctx))
	videosCmd.AddCommand(newVideosExcludeCommand(ctx))
	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, optionally filtered by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := parseStatuses(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(client *api.Client, st *store.Store) error {
				var videos []api.Video
				if client != nil {
					names := make([]string, len(filter))
					for i, status := range filter {
						names[i] = string(status)
					}
					videos, err = client.ListVideos(cmd.Context(), names...)
				} else {
					var records []store.Video
					records, err = st.ListVideos(cmd.Context(), filter...)
					videos = api.FromVideos(records)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.VideoListResponse{Videos: videos})
				}
				if len(videos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos")
					return nil
				}
				writeTable(cmd.OutOrStdout(),
					[]string{"ID", "Video", "Title", "Status", "Duration", "Created"},
					buildVideoRows(videos),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable or comma separated)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a video with its transcript summary, passages and themes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(client *api.Client, st *store.Store) error {
				var detail api.VideoDetail
				if client != nil {
					detail, err = client.Video(cmd.Context(), id)
				} else {
					detail, err = api.LoadVideoDetail(cmd.Context(), st, id)
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				printVideoDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newVideosReingestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reingest <id>...",
		Short: "Discard transcripts and annotations and requeue videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(client *api.Client, st *store.Store) error {
				for _, id := range ids {
					if client != nil {
						_, err = client.Reingest(cmd.Context(), id)
					} else {
						err = st.Reingest(cmd.Context(), id)
					}
					if err != nil {
						return fmt.Errorf("reingest video %d: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Video %d requeued\n", id)
				}
				return nil
			})
		},
	}
}

func newVideosExcludeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <id>...",
		Short: "Skip videos and remove their annotations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parsePositiveIDs(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer st.Close()
			for _, id := range ids {
				if err := st.Exclude(cmd.Context(), id); err != nil {
					return fmt.Errorf("exclude video %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video %d excluded\n", id)
			}
			return nil
		},
	}
}

func parseStatuses(values []string) ([]store.Status, error) {
	var statuses []store.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := store.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func parseVideoID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid video id %q", arg)
	}
	return id, nil
}

func parsePositiveIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseVideoID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildVideoRows(videos []api.Video) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			v.ExternalID,
			displayTitle(v),
			v.Status,
			formatDuration(v.DurationSeconds),
			shortDate(v.CreatedAt),
		})
	}
	return rows
}

func printVideoDetail(out io.Writer, d api.VideoDetail) {
	v := d.Video
	fmt.Fprintf(out, "Video %d: %s\n", v.ID, displayTitle(v))
	fmt.Fprintf(out, "  External ID: %s\n", v.ExternalID)
	if v.SourceURL != "" {
		fmt.Fprintf(out, "  Source:      %s\n", v.SourceURL)
	}
	if v.Channel != "" {
		fmt.Fprintf(out, "  Channel:     %s\n", v.Channel)
	}
	if v.Language != "" {
		fmt.Fprintf(out, "  Language:    %s\n", language.DisplayName(v.Language))
	}
	fmt.Fprintf(out, "  Status:      %s\n", v.Status)
	if v.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       %s\n", v.ErrorMessage)
	}
	if v.DurationSeconds > 0 {
		fmt.Fprintf(out, "  Duration:    %s\n", formatDuration(v.DurationSeconds))
	}
	if t := d.Transcript; t != nil {
		fmt.Fprintf(out, "  Transcript:  %s, %d words, confidence %.2f (%s)\n", t.Source, t.WordCount, t.ConfidenceScore, t.AudioQuality)
	}
	fmt.Fprintf(out, "  Segments:    %d\n", d.Segments)

	if len(d.Passages) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(d.Passages))
		for _, p := range d.Passages {
			rows = append(rows, []string{p.Reference, p.Book, p.PassageType, strconv.Itoa(p.Count)})
		}
		writeTable(out, []string{"Reference", "Book", "Type", "Count"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
	}
	if len(d.Themes) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(d.Themes))
		for _, th := range d.Themes {
			rows = append(rows, []string{th.Tag, fmt.Sprintf("%.2f", th.Score), formatTimestamps(th.Timestamps)})
		}
		writeTable(out, []string{"Theme", "Score", "At"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft})
	}
}

func displayTitle(v api.Video) string {
	if strings.TrimSpace(v.Title) != "" {
		return v.Title
	}
	return "(untitled)"
}

func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return clock(seconds)
}

func clock(seconds int) string {
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTimestamps(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, clock(int(v)))
	}
	return strings.Join(parts, ", ")
}

func shortDate(value string) string {
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}
