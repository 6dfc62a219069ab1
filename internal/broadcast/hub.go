package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pulpit/internal/config"
	"pulpit/internal/logging"
)

const (
	defaultHeartbeat    = 30 * time.Second
	defaultSendTimeout  = 100 * time.Millisecond
	defaultClientBuffer = 16
)

// Options tunes hub delivery.
type Options struct {
	HeartbeatInterval time.Duration
	SendTimeout       time.Duration
	ClientBuffer      int
}

type client struct {
	id string
	ch chan Event
}

// Hub is the subscriber registry.
type Hub struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	// sendMu serializes Broadcast and removal so a channel is never closed
	// while a send to it is in flight.
	sendMu  sync.Mutex
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	lifeMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub constructs a hub. Zero options take the defaults.
func NewHub(opts Options, logger *slog.Logger) *Hub {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeat
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.ClientBuffer <= 0 {
		opts.ClientBuffer = defaultClientBuffer
	}
	return &Hub{
		opts:    opts,
		logger:  logging.NewComponentLogger(logger, "broadcast"),
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// NewHubFromConfig reads the [broadcast] section.
func NewHubFromConfig(cfg *config.Config, logger *slog.Logger) *Hub {
	return NewHub(Options{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		SendTimeout:       cfg.SendTimeout(),
		ClientBuffer:      cfg.Broadcast.ClientBuffer,
	}, logger)
}

// Subscribe registers a new observer. The returned channel is closed when
// the observer is removed. Subscribing to a closed hub yields a closed
// channel.
func (h *Hub) Subscribe() (string, <-chan Event) {
	c := &client{id: uuid.NewString(), ch: make(chan Event, h.opts.ClientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.ch)
		return c.id, c.ch
	}
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("observer subscribed",
		logging.String(logging.FieldEventType, "broadcast_subscribe"),
		logging.String("client_id", c.id),
		logging.Int("clients", count),
	)
	return c.id, c.ch
}

// Unsubscribe removes an observer and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unsubscribe(id string) {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if h.remove(id) {
		h.logger.Debug("observer unsubscribed",
			logging.String(logging.FieldEventType, "broadcast_unsubscribe"),
			logging.String("client_id", id),
		)
	}
}

// remove must be called with sendMu held.
func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	delete(h.clients, id)
	close(c.ch)
	return true
}

// ClientCount reports the number of registered observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers event to every observer and returns how many accepted
// it. Observers that do not accept within the send timeout are removed
// after the delivery loop.
func (h *Hub) Broadcast(event Event) int {
	if event.Timestamp == "" {
		event.Timestamp = h.now().UTC().Format(time.RFC3339)
	}

	h.sendMu.Lock()
	defer h.sendMu.Unlock()

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	var failed []string
	for _, c := range targets {
		if h.deliver(c, event) {
			delivered++
			continue
		}
		failed = append(failed, c.id)
	}

	for _, id := range failed {
		if h.remove(id) {
			logging.WarnWithContext(h.logger, "dropping slow status observer", "broadcast_client_dropped",
				logging.String("client_id", id),
				logging.Duration("send_timeout", h.opts.SendTimeout),
				logging.String(logging.FieldImpact, "observer stops receiving status events until it reconnects"),
				logging.String(logging.FieldErrorHint, "reconnect the observer"),
			)
		}
	}
	return delivered
}

func (h *Hub) deliver(c *client, event Event) bool {
	select {
	case c.ch <- event:
		return true
	default:
	}
	timer := time.NewTimer(h.opts.SendTimeout)
	defer timer.Stop()
	select {
	case c.ch <- event:
		return true
	case <-timer.C:
		return false
	}
}

// Run emits heartbeats until ctx is cancelled. Heartbeats are skipped
// while nobody is subscribed.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.ClientCount() > 0 {
				h.Broadcast(heartbeat(h.now()))
			}
		}
	}
}

// Start runs the heartbeat loop in the background. Calling Start on a
// running hub is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	if h.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run(runCtx)
	}()
}

// Stop cancels the heartbeat loop and waits for it to exit. The hub can be
// started again afterwards.
func (h *Hub) Stop() {
	h.lifeMu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	h.wg.Wait()
}

// Close stops the heartbeat loop and removes every observer.
func (h *Hub) Close() {
	h.Stop()
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.ch)
	}
}
