package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pulpit/internal/config"
	"pulpit/internal/logging"
)

const (
	userAgent            = "pulpit/0.1"
	defaultNotifyTimeout = 2 * time.Second
)

// Notifier publishes status events. Delivery is best effort; implementations
// log failures instead of returning them.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// HTTPDoer is the subset of *http.Client used by HTTPNotifier.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// HubNotifier publishes to a local hub.
type HubNotifier struct {
	Hub *Hub
}

func (n HubNotifier) Notify(_ context.Context, event Event) {
	if n.Hub != nil {
		n.Hub.Broadcast(event)
	}
}

// MultiNotifier fans an event out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}

// HTTPNotifier posts events to a remote daemon's /api/events endpoint.
type HTTPNotifier struct {
	endpoint string
	token    string
	timeout  time.Duration
	client   HTTPDoer
	logger   *slog.Logger
}

// NewHTTPNotifier targets baseURL. A non-positive timeout takes the default.
func NewHTTPNotifier(baseURL, token string, timeout time.Duration, logger *slog.Logger) *HTTPNotifier {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &HTTPNotifier{
		endpoint: strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/api/events",
		token:    strings.TrimSpace(token),
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifier"),
	}
}

// WithHTTPClient swaps the transport.
func (n *HTTPNotifier) WithHTTPClient(client HTTPDoer) *HTTPNotifier {
	if client != nil {
		n.client = client
	}
	return n
}

// Endpoint returns the URL events are posted to.
func (n *HTTPNotifier) Endpoint() string { return n.endpoint }

func (n *HTTPNotifier) Notify(ctx context.Context, event Event) {
	if err := n.send(ctx, event); err != nil {
		n.logger.Debug("status notification dropped",
			logging.String(logging.FieldEventType, "notify_failed"),
			logging.String("endpoint", n.endpoint),
			logging.Error(err),
		)
	}
}

func (n *HTTPNotifier) send(ctx context.Context, event Event) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NewNotifierFromConfig combines the local hub with the remote daemon named
// by broadcast.remote_url. Either may be absent.
func NewNotifierFromConfig(cfg *config.Config, hub *Hub, logger *slog.Logger) Notifier {
	var out MultiNotifier
	if hub != nil {
		out = append(out, HubNotifier{Hub: hub})
	}
	if remote := strings.TrimSpace(cfg.Broadcast.RemoteURL); remote != "" {
		timeout := time.Duration(cfg.Broadcast.NotifyTimeoutMillis) * time.Millisecond
		out = append(out, NewHTTPNotifier(remote, cfg.Paths.APIToken, timeout, logger))
	}
	switch len(out) {
	case 0:
		return NopNotifier{}
	case 1:
		return out[0]
	default:
		return out
	}
}
