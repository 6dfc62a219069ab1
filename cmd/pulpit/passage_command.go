package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pulpit/internal/api"
	"pulpit/internal/references"
	"pulpit/internal/scripture"
	"pulpit/internal/store"
)

func newPassageCommand(ctx *commandContext) *cobra.Command {
	passageCmd := &cobra.Command{
		Use:   "passage",
		Short: "Search the catalog by scripture passage",
	}
	passageCmd.AddCommand(newPassageSearchCommand(ctx))
	return passageCmd
}

func newPassageSearchCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <reference>",
		Short: "List videos whose passages overlap a reference (e.g. JHN.3.16 or \"João 3:16\")",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			return ctx.withStore(cmd, func(client *api.Client, st *store.Store) error {
				var resp api.PassageSearchResponse
				if client != nil {
					var err error
					resp, err = client.SearchPassage(cmd.Context(), raw)
					if err != nil {
						return err
					}
				} else {
					ref, err := references.NewDetector(scripture.Default(), ctx.logger()).Resolve(raw)
					if err != nil {
						return err
					}
					hits, err := st.FindVideosByPassage(cmd.Context(), api.PassageQuery(ref))
					if err != nil {
						return err
					}
					resp = api.PassageSearchResponse{Reference: scripture.FormatOSIS(ref), Matches: api.FromPassageHits(hits)}
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Matches) == 0 {
					fmt.Fprintf(out, "No videos cite %s\n", resp.Reference)
					return nil
				}
				rows := make([][]string, 0, len(resp.Matches))
				for _, m := range resp.Matches {
					rows = append(rows, []string{
						strconv.FormatInt(m.Video.ID, 10),
						displayTitle(m.Video),
						m.Passage.Reference,
						m.Passage.PassageType,
						strconv.Itoa(m.Passage.Count),
					})
				}
				fmt.Fprintf(out, "Videos citing %s\n", resp.Reference)
				writeTable(out, []string{"ID", "Title", "Passage", "Type", "Count"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
