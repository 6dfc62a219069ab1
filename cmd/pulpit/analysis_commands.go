package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pulpit/internal/captions"
	"pulpit/internal/pipeline"
	"pulpit/internal/quality"
	"pulpit/internal/references"
	"pulpit/internal/scripture"
	"pulpit/internal/segment"
	"pulpit/internal/textutil"
	"pulpit/internal/themes"
)

// maxInputBytes bounds what the analysis commands read from a file or stdin.
const maxInputBytes = 32 << 20

// analysisInput is transcript text read from a file or stdin. Cues is set
// when the input was a caption file.
type analysisInput struct {
	Name string
	Text string
	Cues []captions.Cue
}

func readAnalysisInput(cmd *cobra.Command, args []string) (analysisInput, error) {
	name := "-"
	if len(args) > 0 {
		name = args[0]
	}
	var reader io.Reader = cmd.InOrStdin()
	if name != "-" {
		file, err := os.Open(name)
		if err != nil {
			return analysisInput{}, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		reader = file
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxInputBytes))
	if err != nil {
		return analysisInput{}, fmt.Errorf("read input: %w", err)
	}

	input := analysisInput{Name: name}
	format, err := captions.DetectFormat(name, data)
	switch {
	case err == nil:
		cues, parseErr := captions.Parse(data, format)
		if parseErr != nil {
			return analysisInput{}, fmt.Errorf("parse captions: %w", parseErr)
		}
		input.Cues = captions.Clean(cues)
		input.Text = captions.Text(input.Cues)
	case errors.Is(err, captions.ErrUnknownFormat):
		input.Text = textutil.NFC(strings.TrimSpace(string(data)))
	default:
		return analysisInput{}, err
	}
	if input.Text == "" {
		return analysisInput{}, errors.New("input is empty")
	}
	return input, nil
}

type detectedMatch struct {
	Reference string `json:"reference"`
	Book      string `json:"book"`
	Type      string `json:"type"`
	Offset    int    `json:"offset"`
	Text      string `json:"text"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var top int
	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect scripture references in a transcript or caption file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readAnalysisInput(cmd, args)
			if err != nil {
				return err
			}
			detector := references.NewDetector(scripture.Default(), ctx.logger())
			matches := detector.Detect(input.Text)

			if asJSON {
				out := make([]detectedMatch, 0, len(matches))
				for _, m := range matches {
					out = append(out, detectedMatch{
						Reference: scripture.FormatOSIS(m.Reference()),
						Book:      m.Book,
						Type:      string(m.Type),
						Offset:    m.Offset,
						Text:      m.Text,
					})
				}
				return writeJSON(cmd, map[string]any{"matches": out})
			}

			stdout := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(stdout, "No references found")
				return nil
			}
			passages := references.Passages(matches)
			rows := make([][]string, 0, len(passages))
			for _, p := range passages {
				rows = append(rows, []string{scripture.FormatOSIS(p.Reference()), p.Book, string(p.Type), strconv.Itoa(p.Count)})
			}
			writeTable(stdout, []string{"Reference", "Book", "Type", "Count"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})

			stats := references.Aggregate(matches)
			fmt.Fprintf(stdout, "\n%d reference(s); top books: %s\n", stats.Total, formatCounts(stats.TopBooks(top)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output every match as JSON")
	cmd.Flags().IntVar(&top, "top", 5, "How many books to list in the summary")
	return cmd
}

func newThemesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "themes [file]",
		Short: "Tag theological themes in a transcript or caption file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tagger, err := pipeline.NewTaggerFromConfig(cfg)
			if err != nil {
				return err
			}
			input, err := readAnalysisInput(cmd, args)
			if err != nil {
				return err
			}
			var tagged []themes.Theme
			if len(input.Cues) > 0 {
				tagged = tagger.TagCues(input.Cues)
			} else {
				tagged = tagger.Tag(input.Text)
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"themes": tagged})
			}
			if len(tagged) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No themes above the threshold")
				return nil
			}
			rows := make([][]string, 0, len(tagged))
			for _, th := range tagged {
				rows = append(rows, []string{th.Tag, th.Label, fmt.Sprintf("%.2f", th.Score), strconv.Itoa(th.Hits), formatTimestamps(th.Timestamps)})
			}
			writeTable(cmd.OutOrStdout(), []string{"Theme", "Label", "Score", "Hits", "At"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var target, minWords, maxWords int
	cmd := &cobra.Command{
		Use:   "segment [file]",
		Short: "Split a transcript into retrieval segments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bounds := pipeline.BoundsFromConfig(cfg)
			if target > 0 {
				bounds.Target = target
			}
			if minWords > 0 {
				bounds.Min = minWords
			}
			if maxWords > 0 {
				bounds.Max = maxWords
			}
			input, err := readAnalysisInput(cmd, args)
			if err != nil {
				return err
			}
			segments, err := segment.Split(input.Text, bounds, cfg.Segmenter.ContinuationMarker)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"segments": segments})
			}
			rows := make([][]string, 0, len(segments))
			for i, seg := range segments {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					strconv.Itoa(seg.StartWord),
					strconv.Itoa(seg.WordCount()),
					preview(seg.Text, 60),
				})
			}
			writeTable(cmd.OutOrStdout(), []string{"#", "Start", "Words", "Text"}, rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft})
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output full segments as JSON")
	cmd.Flags().IntVar(&target, "target", 0, "Target words per segment (defaults to segmenter.target_words)")
	cmd.Flags().IntVar(&minWords, "min", 0, "Minimum words per segment")
	cmd.Flags().IntVar(&maxWords, "max", 0, "Maximum words per segment")
	return cmd
}

type scoreOutput struct {
	Source     string          `json:"source"`
	WordCount  int             `json:"word_count"`
	Confidence float64         `json:"confidence"`
	Tier       quality.Tier    `json:"tier"`
	Factors    quality.Factors `json:"factors"`
}

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var source string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "score [file]",
		Short: "Score transcript quality for a given acquisition source",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy := pipeline.PolicyFromConfig(cfg)
			if _, ok := policy.Base[source]; !ok {
				return fmt.Errorf("unknown source %q (want one of %s)", source, strings.Join(sortedKeys(policy.Base), ", "))
			}
			input, err := readAnalysisInput(cmd, args)
			if err != nil {
				return err
			}
			words := textutil.WordCount(input.Text)
			assessment := policy.Score(input.Text, source, words)
			result := scoreOutput{
				Source:     source,
				WordCount:  words,
				Confidence: assessment.Confidence,
				Tier:       assessment.Tier,
				Factors:    assessment.Factors,
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Confidence: %.3f (%s)\n", result.Confidence, result.Tier)
			fmt.Fprintf(out, "Words:      %d\n", result.WordCount)
			factors := result.Factors.Map()
			rows := make([][]string, 0, len(factors))
			for _, key := range sortedKeys(factors) {
				rows = append(rows, []string{key, strconv.FormatFloat(factors[key], 'f', 3, 64)})
			}
			writeTable(out, []string{"Factor", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", quality.SourceAutoCaption, "Acquisition source the text came from")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func formatCounts(counts []references.Count) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Key, c.Count))
	}
	return strings.Join(parts, ", ")
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
