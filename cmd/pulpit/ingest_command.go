package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/daemonrun"
	"pulpit/internal/feeds"
	"pulpit/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var title string
	var language string
	var now bool

	cmd := &cobra.Command{
		Use:   "ingest <url|id>...",
		Short: "Queue videos for transcription and analysis",
		Long: "Queue one or more videos by watch URL or video id.\n\n" +
			"With --now and no daemon running, the queue is processed in this process before returning.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests := make([]api.EnqueueRequest, 0, len(args))
			for _, arg := range args {
				req, err := enqueueRequestFor(arg)
				if err != nil {
					return err
				}
				req.Title = strings.TrimSpace(title)
				req.Language = strings.TrimSpace(language)
				requests = append(requests, req)
			}

			out := cmd.OutOrStdout()
			if client, _ := ctx.reachableClient(cmd.Context()); client != nil {
				for _, req := range requests {
					resp, err := client.Enqueue(cmd.Context(), req)
					if err != nil {
						return err
					}
					printEnqueued(cmd, resp.Video.ID, resp.Video.ExternalID, resp.Created)
				}
				if now {
					fmt.Fprintln(out, "Daemon is running; it will process the queued videos")
				}
				return nil
			}

			if !now {
				return ctx.withStore(cmd, func(_ *api.Client, st *store.Store) error {
					for _, req := range requests {
						video, created, err := st.Enqueue(cmd.Context(), newVideoFor(req))
						if err != nil {
							return err
						}
						printEnqueued(cmd, video.ID, video.ExternalID, created)
					}
					return nil
				})
			}

			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				ids := make([]int64, 0, len(requests))
				for _, req := range requests {
					video, created, err := rt.Store.Enqueue(cmd.Context(), newVideoFor(req))
					if err != nil {
						return err
					}
					printEnqueued(cmd, video.ID, video.ExternalID, created)
					ids = append(ids, video.ID)
				}
				processed, err := rt.Workflow.Drain(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Processed %d video(s)\n", processed)
				for _, id := range ids {
					video, err := rt.Store.GetVideo(cmd.Context(), id)
					if err != nil {
						return err
					}
					line := fmt.Sprintf("Video %d (%s): %s", video.ID, video.ExternalID, video.Status)
					if video.ErrorMessage != "" {
						line += " - " + video.ErrorMessage
					}
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title to record before metadata is fetched")
	cmd.Flags().StringVar(&language, "language", "", "Transcript language hint (e.g. pt)")
	cmd.Flags().BoolVar(&now, "now", false, "Process the queue immediately when no daemon is running")
	return cmd
}

// enqueueRequestFor classifies arg as a watch URL or a bare video id.
func enqueueRequestFor(arg string) (api.EnqueueRequest, error) {
	arg = strings.TrimSpace(arg)
	id := feeds.VideoIDFromURL(arg)
	if id == "" {
		return api.EnqueueRequest{}, fmt.Errorf("no video id in %q", arg)
	}
	if id == arg {
		return api.EnqueueRequest{ExternalID: id}, nil
	}
	return api.EnqueueRequest{ExternalID: id, SourceURL: arg}, nil
}

func newVideoFor(req api.EnqueueRequest) store.NewVideo {
	source := req.SourceURL
	if source == "" {
		source = feeds.WatchURL(req.ExternalID)
	}
	return store.NewVideo{
		ExternalID: req.ExternalID,
		SourceURL:  source,
		Title:      req.Title,
		Language:   req.Language,
	}
}

func printEnqueued(cmd *cobra.Command, id int64, externalID string, created bool) {
	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "Queued video %d (%s)\n", id, externalID)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Video %d (%s) already in catalog\n", id, externalID)
}
