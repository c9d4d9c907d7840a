package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
)

// deviceLogTimeout bounds the best-effort AppendLog call made when a bus
// message fails to decode; the repository write must never stall inbound
// message handling.
const deviceLogTimeout = 2 * time.Second

const defaultOutboundCapacity = 1024

// OutboundMessage is one queued publish request.
type OutboundMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Adapter is the Bus Adapter (C4).
type Adapter struct {
	client   *mqtt.Client
	registry *codec.Registry
	store    *state.Store
	repo     persistence.Repository
	log      *logging.Logger
	qos      byte

	outbound chan OutboundMessage
	dropped  atomic.Int64

	runMu   sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds an Adapter over an already-connected mqtt.Client.
func New(client *mqtt.Client, registry *codec.Registry, store *state.Store, cfg config.MQTTConfig, log *logging.Logger) *Adapter {
	qos := byte(cfg.QoS)
	return &Adapter{
		client:   client,
		registry: registry,
		store:    store,
		log:      log,
		qos:      qos,
		outbound: make(chan OutboundMessage, defaultOutboundCapacity),
	}
}

// WithRepository attaches a Repository so undecodable bus messages are
// recorded as device_logs rows instead of only appearing in the process
// log. Optional: an Adapter built via New alone still decodes and applies
// messages normally, it just has nowhere durable to note decode failures.
func (a *Adapter) WithRepository(repo persistence.Repository) *Adapter {
	a.repo = repo
	return a
}

// Start subscribes to every bus topic pattern and begins draining the
// outbound publish queue. It returns once subscriptions are established;
// message handling and outbound draining continue in the background until
// ctx is cancelled or Stop is called.
func (a *Adapter) Start(ctx context.Context) error {
	for _, pattern := range (mqtt.Topics{}).SubscriptionPatterns() {
		if err := a.client.Subscribe(pattern, a.qos, a.handleMessage); err != nil {
			return err
		}
	}

	a.runMu.Lock()
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.runMu.Unlock()

	go a.runOutbound(ctx)
	return nil
}

// Stop halts outbound draining. Inbound messages already delivered by the
// mqtt client continue to be handled (harmlessly, since Publish will
// return ErrNotRunning) until the caller also closes the mqtt connection.
func (a *Adapter) Stop() {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	a.runMu.Unlock()

	<-a.doneCh
}

func (a *Adapter) handleMessage(topic string, payload []byte) error {
	ev, err := a.registry.Decode(topic, payload)
	if err != nil {
		a.log.Warn("dropping undecodable bus message", "topic", topic, "error", err)
		a.recordDecodeFailure(topic, err)
		return nil
	}
	a.store.Apply(ev)
	return nil
}

// recordDecodeFailure appends a device_logs row for an undecodable message,
// when a Repository is attached. Best-effort: a write failure here is
// logged and otherwise ignored, never surfaced to the mqtt client.
func (a *Adapter) recordDecodeFailure(topic string, decodeErr error) {
	if a.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deviceLogTimeout)
	defer cancel()
	line := persistence.LogLine{
		Ts:      time.Now(),
		Level:   "warn",
		Message: "undecodable bus message on " + topic + ": " + decodeErr.Error(),
	}
	if err := a.repo.AppendLog(ctx, line); err != nil {
		a.log.Error("recording device log", "error", err)
	}
}

// Publish enqueues a message for the outbound sender. It never blocks: a
// full queue drops its oldest entry to make room, counting the drop.
func (a *Adapter) Publish(msg OutboundMessage) error {
	a.runMu.RLock()
	running := a.running
	a.runMu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case a.outbound <- msg:
		return nil
	default:
		select {
		case <-a.outbound:
			a.dropped.Add(1)
		default:
		}
		select {
		case a.outbound <- msg:
		default:
		}
		return nil
	}
}

// Dropped returns the count of outbound messages dropped for backpressure.
func (a *Adapter) Dropped() int64 {
	return a.dropped.Load()
}

// IsConnected reports whether the underlying bus connection is currently up.
func (a *Adapter) IsConnected() bool {
	if a.client == nil {
		return false
	}
	return a.client.IsConnected()
}

// QueueSaturated reports whether the outbound publish queue is completely
// full, the condition C7 checks alongside IsConnected to surface
// ErrBusUnavailable instead of enqueuing into a queue that can only grow by
// dropping something else.
func (a *Adapter) QueueSaturated() bool {
	return len(a.outbound) >= cap(a.outbound)
}

func (a *Adapter) runOutbound(ctx context.Context) {
	defer close(a.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		case msg := <-a.outbound:
			qos := msg.QoS
			if qos == 0 {
				qos = a.qos
			}
			if err := a.client.Publish(msg.Topic, msg.Payload, qos, msg.Retained); err != nil {
				a.log.Error("outbound publish failed", "topic", msg.Topic, "error", err)
			}
		}
	}
}
