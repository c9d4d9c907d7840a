package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

type pendingKey struct {
	deviceID string
	group    string
}

// Hub is the Client Fan-Out (C9).
type Hub struct {
	fanoutCfg config.FanoutConfig
	wsCfg     config.WebSocketConfig
	log       *logging.Logger
	source    Source

	mu      sync.RWMutex
	clients map[*Client]struct{}

	pendingMu sync.Mutex
	pending   map[pendingKey]Message

	lastAlerts []alerts.ActiveAlert
}

// NewHub builds a Hub. source supplies the on-connect snapshot and the
// periodic alert set.
func NewHub(fanoutCfg config.FanoutConfig, wsCfg config.WebSocketConfig, source Source, log *logging.Logger) *Hub {
	if fanoutCfg.QueueSize <= 0 {
		fanoutCfg.QueueSize = 64
	}
	if fanoutCfg.CoalesceWindow <= 0 {
		fanoutCfg.CoalesceWindow = 100
	}
	return &Hub{
		fanoutCfg: fanoutCfg,
		wsCfg:     wsCfg,
		log:       log,
		source:    source,
		clients:   make(map[*Client]struct{}),
		pending:   make(map[pendingKey]Message),
	}
}

// Run subscribes to store for change events, coalesces them per
// (device_id, topic-group) within the configured window, and periodically
// re-evaluates the alert set, pushing "alerts" messages when it changes.
// It blocks until ctx is cancelled, then drains queued clients for up to
// drainTimeout before forcibly closing anything left.
func (h *Hub) Run(ctx context.Context, store *state.Store, alertsCheckInterval time.Duration, drainTimeout time.Duration) {
	ch, unsubscribe := store.Subscribe(h.fanoutCfg.QueueSize)
	defer unsubscribe()

	coalesce := time.NewTicker(time.Duration(h.fanoutCfg.CoalesceWindow) * time.Millisecond)
	defer coalesce.Stop()

	if alertsCheckInterval <= 0 {
		alertsCheckInterval = 5 * time.Second
	}
	alertsTicker := time.NewTicker(alertsCheckInterval)
	defer alertsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drain(drainTimeout)
			return

		case c, ok := <-ch:
			if !ok {
				h.drain(drainTimeout)
				return
			}
			h.enqueue(c)

		case <-coalesce.C:
			h.flush()

		case <-alertsTicker.C:
			h.checkAlerts()
		}
	}
}

func (h *Hub) enqueue(c state.StateChange) {
	group := topicGroup(c.DeviceID, c.Kind)
	msg := Message{Type: group, DeviceID: c.DeviceID, Data: dataFor(c)}

	h.pendingMu.Lock()
	h.pending[pendingKey{deviceID: c.DeviceID, group: group}] = msg
	h.pendingMu.Unlock()
}

func (h *Hub) flush() {
	h.pendingMu.Lock()
	if len(h.pending) == 0 {
		h.pendingMu.Unlock()
		return
	}
	batch := h.pending
	h.pending = make(map[pendingKey]Message)
	h.pendingMu.Unlock()

	for _, msg := range batch {
		h.broadcast(msg)
	}
}

func (h *Hub) checkAlerts() {
	current := h.source.Alerts()
	if alertSetsEqual(h.lastAlerts, current) {
		return
	}
	h.lastAlerts = current
	h.broadcast(Message{Type: TypeAlerts, Alerts: current})
}

func alertSetsEqual(a, b []alerts.ActiveAlert) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, x := range a {
		seen[x.DeviceID+"\x00"+x.Code] = true
	}
	for _, y := range b {
		if !seen[y.DeviceID+"\x00"+y.Code] {
			return false
		}
	}
	return true
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshalling fanout message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.send(data)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if existed {
		close(c.sendCh)
	}
}

func (h *Hub) drain(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n == 0 {
			return
		}
		select {
		case <-deadline:
			h.closeAll()
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.sendCh)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleUpgrade upgrades an HTTP request to a WebSocket connection, sends
// the initial snapshot, and starts the client's read/write pumps. Callers
// register it at the path from config.WebSocketConfig.Path.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn)
	h.register(c)
	h.log.Info("fanout client connected", "client_id", c.id, "remote_addr", r.RemoteAddr)

	devices := h.source.Devices()
	snapshot := Message{Type: TypeSnapshot, Devices: devices, Alerts: h.source.Alerts()}
	if data, err := json.Marshal(snapshot); err == nil {
		c.send(data)
	}

	go c.writePump()
	go c.readPump()
}
