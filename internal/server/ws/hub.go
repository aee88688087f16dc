// Package ws streams oracle events to WebSocket clients. Every event is
// published on its type channel ("ch:realitio:<EventType>") and, when it
// concerns a question, on that question's channel ("q:<questionID>").
// Clients pick channels with control messages and may replay the recent
// backlog after (re)connecting.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

const (
	// typePrefix matches the pub/sub naming used for oracle events.
	typePrefix     = "ch:realitio:"
	questionPrefix = "q:"

	// backlogSize is how many recent frames a replay can return.
	backlogSize = 128
)

// defaultChannels are the subscriptions a new client starts with.
var defaultChannels = []string{typePrefix + "*"}

// TypeChannel names the channel carrying every event of type t.
func TypeChannel(t domain.EventType) string { return typePrefix + string(t) }

// QuestionChannel names the channel carrying every event about a question.
func QuestionChannel(id common.Hash) string { return questionPrefix + id.Hex() }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS and auth middleware in front of /ws.
	CheckOrigin: func(*http.Request) bool { return true },
}

// frame is what clients receive for every oracle event.
type frame struct {
	Type    string       `json:"type"`
	Seq     uint64       `json:"seq"`
	Channel string       `json:"channel"`
	Event   domain.Event `json:"event"`
}

// routed is an encoded frame and every channel it is published on.
type routed struct {
	channels []string
	data     []byte
}

// request is a client control message the hub loop must act on.
type request struct {
	c      *client
	replay bool
}

// Hub owns the connected clients and the replay backlog. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*client]struct{}
	events     chan routed
	register   chan *client
	unregister chan *client
	requests   chan request
	done       chan struct{}

	// backlog is a ring of the last backlogSize frames; next is the slot
	// the following frame goes to.
	backlog []routed
	next    int

	seq    atomic.Uint64
	count  atomic.Int64
	logger *slog.Logger

	mode      string
	startedAt time.Time
	closeOnce sync.Once
}

// Config captures the metadata reported to clients on connect.
type Config struct {
	Mode      string
	StartedAt time.Time
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		clients:    make(map[*client]struct{}),
		events:     make(chan routed, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		requests:   make(chan request, 16),
		done:       make(chan struct{}),
		backlog:    make([]routed, 0, backlogSize),
		logger:     logger.With(slog.String("component", "ws_hub")),
		mode:       mode,
		startedAt:  startedAt,
	}
}

// Name identifies the hub as an event subscriber.
func (h *Hub) Name() string { return "ws_hub" }

// HandleEvent queues ev for delivery. It blocks while the queue is full and
// is a no-op once the hub has stopped.
func (h *Hub) HandleEvent(ctx context.Context, ev domain.Event) error {
	channel := TypeChannel(ev.Type)
	data, err := json.Marshal(frame{
		Type:    "event",
		Seq:     h.seq.Add(1),
		Channel: channel,
		Event:   ev,
	})
	if err != nil {
		return fmt.Errorf("ws: encode %s: %w", ev.Type, err)
	}
	msg := routed{channels: []string{channel}, data: data}
	if ev.QuestionID != (common.Hash{}) {
		msg.channels = append(msg.channels, QuestionChannel(ev.QuestionID))
	}

	select {
	case h.events <- msg:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ws: broadcast %s: %w", ev.Type, ctx.Err())
	}
}

// Run is the hub loop. It returns nil once ctx is cancelled, after closing
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.logger.Info("ws: client connected", slog.Int("total_clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Info("ws: client disconnected", slog.Int("total_clients", len(h.clients)))
			}

		case req := <-h.requests:
			if _, ok := h.clients[req.c]; !ok {
				continue
			}
			if req.replay {
				h.replay(req.c)
			} else {
				h.deliver(req.c, req.c.subscriptionsFrame())
			}

		case msg := <-h.events:
			h.remember(msg)
			for c := range h.clients {
				if c.wants(msg.channels) {
					h.deliver(c, msg.data)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// deliver never blocks the loop; a client whose buffer is full misses data.
func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("ws: dropping message for slow client")
	}
}

func (h *Hub) remember(msg routed) {
	if len(h.backlog) < backlogSize {
		h.backlog = append(h.backlog, msg)
		return
	}
	h.backlog[h.next] = msg
	h.next = (h.next + 1) % backlogSize
}

// replay sends the backlog oldest first, filtered by the client's channels.
func (h *Hub) replay(c *client) {
	n := len(h.backlog)
	for i := range n {
		msg := h.backlog[(h.next+i)%n]
		if c.wants(msg.channels) {
			h.deliver(c, msg.data)
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	c.greet()
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// submit hands a control request to the loop unless the hub has stopped.
func (h *Hub) submit(req request) {
	select {
	case h.requests <- req:
	case <-h.done:
	}
}
