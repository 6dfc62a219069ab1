package transcriptapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pulpit/internal/captions"
	"pulpit/internal/services"
)

// ErrNoTranscript is returned when the service has no usable track.
var ErrNoTranscript = errors.New("no transcript track available")

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the selected transcript track.
type Result struct {
	Text      string
	Language  string
	Generated bool
	Cues      []captions.Cue
}

// Client fetches transcripts.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// New returns a client. An empty baseURL yields a client whose Fetch fails
// with a configuration error.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient overrides the HTTP client.
func (c *Client) WithHTTPClient(client HTTPDoer) {
	if client != nil {
		c.client = client
	}
}

// Configured reports whether a base URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type segmentPayload struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

type trackPayload struct {
	Language string           `json:"language"`
	Kind     string           `json:"kind"`
	Segments []segmentPayload `json:"segments"`
}

type responsePayload struct {
	VideoID string         `json:"video_id"`
	Tracks  []trackPayload `json:"tracks"`
}

// Fetch requests tracks for externalID and selects one.
func (c *Client) Fetch(ctx context.Context, externalID string, languages []string) (Result, error) {
	var result Result
	if !c.Configured() {
		return result, services.Wrap(services.ErrConfiguration, "transcriptapi", "fetch", "transcript_api_url not set", nil)
	}
	endpoint := fmt.Sprintf("%s/v1/transcripts/%s", c.baseURL, url.PathEscape(externalID))
	if len(languages) > 0 {
		endpoint += "?" + url.Values{"languages": {strings.Join(languages, ",")}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, fmt.Errorf("build transcript request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "transcriptapi", "fetch", externalID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "transcriptapi", "read body", externalID, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return result, services.Wrap(services.ErrNotFound, "transcriptapi", "fetch", externalID, ErrNoTranscript)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return result, services.Wrap(services.ErrTransient, "transcriptapi", "fetch",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var payload responsePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcriptapi", "decode", externalID, err)
	}
	track, ok := selectTrack(payload.Tracks, languages)
	if !ok {
		return result, services.Wrap(services.ErrNotFound, "transcriptapi", "select", externalID, ErrNoTranscript)
	}
	return track, nil
}

// selectTrack prefers manual tracks in language order, then generated
// tracks in language order. Tracks without text are skipped. An empty
// language list accepts any language.
func selectTrack(tracks []trackPayload, languages []string) (Result, bool) {
	for _, generated := range []bool{false, true} {
		for _, lang := range languageOrder(languages) {
			for _, track := range tracks {
				if isGenerated(track.Kind) != generated || !matchesLanguage(track.Language, lang) {
					continue
				}
				cues := toCues(track.Segments)
				text := captions.JoinText(cues)
				if text == "" {
					continue
				}
				return Result{Text: text, Language: track.Language, Generated: generated, Cues: cues}, true
			}
		}
	}
	return Result{}, false
}

func languageOrder(languages []string) []string {
	if len(languages) == 0 {
		return []string{""}
	}
	return languages
}

func matchesLanguage(track, want string) bool {
	if want == "" {
		return true
	}
	track = strings.ToLower(track)
	want = strings.ToLower(strings.TrimSpace(want))
	return track == want || strings.HasPrefix(track, want+"-")
}

func isGenerated(kind string) bool {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "generated", "asr", "auto":
		return true
	}
	return false
}

func toCues(segments []segmentPayload) []captions.Cue {
	cues := make([]captions.Cue, 0, len(segments))
	for _, seg := range segments {
		start := time.Duration(seg.Start * float64(time.Second))
		cues = append(cues, captions.Cue{
			Start: start,
			End:   start + time.Duration(seg.Duration*float64(time.Second)),
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return cues
}
