package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/assistant"
	"pulpit/internal/daemonrun"
	"pulpit/internal/validate"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var videoIDs []int64
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a question answered from the sermon catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AskRequest{Question: strings.TrimSpace(strings.Join(args, " ")), VideoIDs: videoIDs}
			if err := validate.Struct(req); err != nil {
				return err
			}

			var answer assistant.Answer
			if client, _ := ctx.reachableClient(cmd.Context()); client != nil {
				var err error
				if answer, err = client.Ask(cmd.Context(), req); err != nil {
					return err
				}
			} else {
				err := ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
					var askErr error
					answer, askErr = rt.Assistant.Ask(cmd.Context(), assistant.Request{Question: req.Question, VideoIDs: req.VideoIDs})
					return askErr
				})
				if err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, answer)
			}
			printAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&videoIDs, "video", nil, "Restrict the answer to these video ids (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printAnswer(out io.Writer, answer assistant.Answer) {
	fmt.Fprintln(out, strings.TrimSpace(answer.Response))
	if len(answer.CitedVideos) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for i, cited := range answer.CitedVideos {
			line := fmt.Sprintf("  [%d] %s (video %d at %s)", i+1, cited.Title, cited.VideoID, clock(int(cited.Timestamp)))
			if i < len(answer.RelevanceScores) {
				line += fmt.Sprintf(" relevance %.2f", answer.RelevanceScores[i])
			}
			fmt.Fprintln(out, line)
		}
	}
	var notes []string
	if answer.Backend != "" {
		notes = append(notes, "backend "+answer.Backend)
	}
	if answer.Cached {
		notes = append(notes, fmt.Sprintf("cached, %d hits", answer.HitCount))
	}
	if answer.Fallback {
		notes = append(notes, "fallback answer")
	}
	if len(notes) > 0 {
		fmt.Fprintf(out, "\n(%s)\n", strings.Join(notes, "; "))
	}
}
