package captions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// Format identifies a caption encoding.
type Format string

const (
	FormatVTT  Format = "vtt"
	FormatSRV3 Format = "srv3"
)

// ErrUnknownFormat reports caption data that is neither WebVTT nor XML.
var ErrUnknownFormat = errors.New("unknown caption format")

// DetectFormat guesses the format from the file name, falling back to the
// content.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vtt":
		return FormatVTT, nil
	case ".srv3", ".xml", ".ttml":
		return FormatSRV3, nil
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	switch {
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return FormatVTT, nil
	case bytes.HasPrefix(trimmed, []byte("<")):
		return FormatSRV3, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// Parse decodes caption data into raw cues.
func Parse(data []byte, format Format) ([]Cue, error) {
	switch format {
	case FormatVTT:
		return ParseVTT(data)
	case FormatSRV3:
		return ParseSRV3(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// ParseVTT decodes a WebVTT document. Cue settings after the timing line
// are ignored, as are NOTE, STYLE and REGION blocks.
func ParseVTT(data []byte) ([]Cue, error) {
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues    []Cue
		current *Cue
		lines   []string
		skip    bool
		header  = true
	)
	flush := func() {
		if current != nil {
			current.Text = strings.Join(lines, "\n")
			cues = append(cues, *current)
		}
		current, lines, skip = nil, nil, false
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if header {
			if !strings.HasPrefix(line, "WEBVTT") {
				return nil, errors.New("missing WEBVTT header")
			}
			header = false
			skip = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if skip {
			continue
		}
		if current == nil {
			if strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION" {
				skip = true
				continue
			}
			if !strings.Contains(line, "-->") {
				// cue identifier
				continue
			}
			start, end, err := parseTiming(line)
			if err != nil {
				return nil, err
			}
			current = &Cue{Start: start, End: end}
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vtt: %w", err)
	}
	if header {
		return nil, errors.New("missing WEBVTT header")
	}
	flush()
	return cues, nil
}

func parseTiming(line string) (time.Duration, time.Duration, error) {
	left, right, _ := strings.Cut(line, "-->")
	start, err := parseTimestamp(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(right)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("vtt timing %q: missing end", line)
	}
	end, err := parseTimestamp(fields[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts hh:mm:ss.mmm and mm:ss.mmm.
func parseTimestamp(value string) (time.Duration, error) {
	parts := strings.Split(strings.Replace(value, ",", ".", 1), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("vtt timestamp %q", value)
	}
	var total time.Duration
	for i, part := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("vtt timestamp %q", value)
		}
		unit := time.Minute
		if len(parts) == 3 && i == 0 {
			unit = time.Hour
		}
		total += time.Duration(n) * unit
	}
	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("vtt timestamp %q", value)
	}
	return total + time.Duration(secs*float64(time.Second)).Round(time.Millisecond), nil
}

// ParseSRV3 decodes YouTube timed text. Both srv3 (<p t="ms" d="ms">) and
// the legacy <text start="s" dur="s"> layout are understood.
func ParseSRV3(data []byte) ([]Cue, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse timed text: %w", err)
	}
	var cues []Cue
	for _, p := range xmlquery.Find(root, "//body/p") {
		start := millisAttr(p, "t")
		cues = append(cues, Cue{
			Start: start,
			End:   start + millisAttr(p, "d"),
			Text:  p.InnerText(),
		})
	}
	if len(cues) > 0 {
		return cues, nil
	}
	for _, n := range xmlquery.Find(root, "//text") {
		start := secondsAttr(n, "start")
		cues = append(cues, Cue{
			Start: start,
			End:   start + secondsAttr(n, "dur"),
			Text:  n.InnerText(),
		})
	}
	if len(cues) == 0 && xmlquery.FindOne(root, "/timedtext|/transcript|/tt") == nil {
		return nil, fmt.Errorf("%w: no timed text root", ErrUnknownFormat)
	}
	return cues, nil
}

func millisAttr(n *xmlquery.Node, name string) time.Duration {
	v, err := strconv.ParseInt(n.SelectAttr(name), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return time.Duration(v) * time.Millisecond
}

func secondsAttr(n *xmlquery.Node, name string) time.Duration {
	v, err := strconv.ParseFloat(n.SelectAttr(name), 64)
	if err != nil || v < 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second)).Round(time.Millisecond)
}
