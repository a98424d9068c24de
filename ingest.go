package telemetry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/2saloni/agrolt-dashboard/model"
	"github.com/2saloni/agrolt-dashboard/normalize"
)

// PipelineState represents the connectivity state of the ingestion
// pipeline with respect to the message bus.
type PipelineState int

// Pipeline states. Transitions:
//
//	Disconnected → Connecting → Subscribing → Live
//	Live → Reconnecting → Subscribing (on bus-level disconnect)
//
// Every transition into Subscribing re-derives the full device×zone
// topic set from the relational store; there is no incremental diffing.
const (
	StateDisconnected PipelineState = iota
	StateConnecting
	StateSubscribing
	StateLive
	StateReconnecting
)

// String returns the string representation of a PipelineState.
func (s PipelineState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MessageHandler consumes one inbound bus message.
type MessageHandler func(topic string, payload []byte)

// BusConnection abstracts the MQTT client owned by the pipeline. The
// production implementation wraps Eclipse Paho (adapters/paho); tests
// use an in-memory fake.
//
// Implementations must invoke onConnect after every successful
// (re)connection — including broker-initiated reconnects — so the
// pipeline can rebuild its subscription set, and onConnectionLost on
// every drop.
type BusConnection interface {
	// Connect establishes the broker connection and registers the
	// lifecycle callbacks. Blocks until the initial connection attempt
	// resolves.
	Connect(ctx context.Context, onConnect func(), onConnectionLost func(error)) error

	// Subscribe registers handler for one topic. Safe to call again for
	// a topic after a reconnect.
	Subscribe(topic string, handler MessageHandler) error

	// IsConnected reports broker-level connectivity.
	IsConnected() bool

	// Disconnect tears the connection down.
	Disconnect()
}

// Pipeline is the ingestion pipeline: it owns the bus connection,
// derives and maintains the subscription set, and drives each inbound
// message through normalize → commit → broadcast.
//
// Bus-level failures flip internal state and are logged; they are never
// propagated to callers — the pipeline has no synchronous caller and
// all failures are operator-log concerns.
//
// Thread safety: safe for concurrent use; inbound messages for
// different topics are processed concurrently.
type Pipeline struct {
	bus         BusConnection
	deviceRepo  DeviceRepository
	store       *VersionedStore
	registry    *SubscriptionRegistry
	normalizer  *normalize.Normalizer
	broadcaster Broadcaster
	alerts      AlertService
	logger      Logger
	metrics     *Metrics

	mu         sync.RWMutex
	state      PipelineState
	subscribed int
	lastErr    error

	runCtx context.Context
}

// PipelineStatus is a point-in-time connectivity snapshot, exposed to
// the dashboard's status endpoint.
type PipelineStatus struct {
	State            string `json:"state"`
	BusConnected     bool   `json:"busConnected"`
	SubscribedTopics int    `json:"subscribedTopics"`
	LastError        string `json:"lastError,omitempty"`
}

// NewPipeline creates a new Pipeline with the provided options.
//
// Required options:
//   - WithPipelineBus: bus connection
//   - WithPipelineDeviceRepository: device/zone read access
//   - WithPipelineStore: versioned store
//   - WithPipelineLogger: logger instance
//
// Optional options:
//   - WithPipelineBroadcaster: fan-out target (default: NoopBroadcaster)
//   - WithPipelineNormalizer: payload normalizer (default: normalize.NewNormalizer())
//   - WithPipelineRegistry: subscription registry (default: empty registry)
//   - WithPipelineAlerts: alert service (default: NoOpAlertService)
//   - WithPipelineMetrics: Prometheus metrics (default: none)
func NewPipeline(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		registry:    NewSubscriptionRegistry(),
		normalizer:  normalize.NewNormalizer(),
		broadcaster: NoopBroadcaster{},
		alerts:      &NoOpAlertService{},
		state:       StateDisconnected,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply pipeline option", err)
		}
	}

	// Validate required dependencies
	if p.bus == nil {
		return nil, NewError(ErrCodeConfiguration, "BusConnection is required (use WithPipelineBus)")
	}
	if p.deviceRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "DeviceRepository is required (use WithPipelineDeviceRepository)")
	}
	if p.store == nil {
		return nil, NewError(ErrCodeConfiguration, "VersionedStore is required (use WithPipelineStore)")
	}
	if p.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithPipelineLogger)")
	}

	return p, nil
}

// Start brings the pipeline up. The relational store must already be
// reachable: Start fails fast when the probe fails and does not retry
// internally — restart policy belongs to the process supervisor.
//
// The context governs the pipeline's lifetime; message handling uses it
// for storage commits until Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.deviceRepo.Ping(ctx); err != nil {
		p.logger.Errorf("Relational store unreachable, not starting pipeline: %v", err)
		return NewErrorWithCause(ErrCodeConnectivity, "relational store unreachable", err)
	}

	p.mu.Lock()
	p.runCtx = ctx
	p.state = StateConnecting
	p.mu.Unlock()

	p.logger.Info("Connecting to message bus")
	if err := p.bus.Connect(ctx, p.onBusConnect, p.onBusLost); err != nil {
		p.setState(StateDisconnected, err)
		p.logger.Errorf("Initial bus connection failed: %v", err)
		return NewErrorWithCause(ErrCodeConnectivity, "bus connection failed", err)
	}
	return nil
}

// Stop tears down the bus connection.
func (p *Pipeline) Stop() {
	p.bus.Disconnect()
	p.setState(StateDisconnected, nil)
	p.logger.Info("Pipeline stopped")
}

// Status returns a connectivity snapshot.
func (p *Pipeline) Status() PipelineStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := PipelineStatus{
		State:            p.state.String(),
		BusConnected:     p.bus.IsConnected(),
		SubscribedTopics: p.subscribed,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	return status
}

// State returns the current pipeline state.
func (p *Pipeline) State() PipelineState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Registry exposes the subscription registry (read-mostly; rebuilt only
// by the pipeline itself).
func (p *Pipeline) Registry() *SubscriptionRegistry {
	return p.registry
}

// onBusConnect runs on every successful (re)connection. It re-derives
// the complete device×zone topic set and subscribes to each topic —
// unconditionally the full set, never just the previously active
// subset. Per-topic subscribe failures are logged and skipped; they do
// not abort the rest of the batch.
func (p *Pipeline) onBusConnect() {
	p.setState(StateSubscribing, nil)
	ctx := p.lifetimeContext()

	devices, err := p.deviceRepo.ListWithZones(ctx)
	if err != nil {
		// Degraded: keep the previous registry contents and wait for the
		// next reconnect cycle to retry derivation.
		p.setState(StateLive, err)
		p.logger.Errorf("Failed to enumerate devices for subscription derivation: %v", err)
		return
	}

	entries := p.registry.Rebuild(devices)
	subscribed := 0
	for _, entry := range entries {
		if err := p.bus.Subscribe(entry.TopicName, p.HandleMessage); err != nil {
			p.logger.Warnf("Failed to subscribe to topic %s: %v", entry.TopicName, err)
			continue
		}
		subscribed++
	}

	p.mu.Lock()
	p.state = StateLive
	p.subscribed = subscribed
	p.lastErr = nil
	p.mu.Unlock()

	p.logger.Infof("Bus connected, subscribed to %d/%d topics", subscribed, len(entries))
	p.alerts.NotifyBusConnected(ctx, subscribed)
}

// onBusLost runs when the broker connection drops. The bus client
// reconnects on its own; once it does, onBusConnect re-derives the full
// subscription set.
func (p *Pipeline) onBusLost(err error) {
	p.setState(StateReconnecting, err)
	p.logger.Warnf("Bus connection lost, awaiting reconnect: %v", err)
	p.alerts.NotifyBusConnectionLost(p.lifetimeContext(), err)
}

// HandleMessage drives one inbound bus message through the pipeline:
// resolve attribution, decode, normalize, commit, broadcast. Exposed so
// bus adapters can route into it directly.
func (p *Pipeline) HandleMessage(topic string, raw []byte) {
	ctx := p.lifetimeContext()
	if p.metrics != nil {
		p.metrics.MessagesReceived.Inc()
	}

	entry, ok := p.registry.Resolve(topic)
	if !ok {
		p.logger.Warnf("Dropping message for unattributed topic %s (%d bytes)", topic, len(raw))
		p.alerts.NotifyMessageDropped(ctx, topic)
		if p.metrics != nil {
			p.metrics.MessagesDropped.WithLabelValues(dropReasonAttribution).Inc()
		}
		return
	}

	payload := decodePayload(raw)
	normalized := p.normalizer.Normalize(topic, payload)

	rec, err := p.store.Commit(ctx, topic, normalized, entry.DeviceID, entry.ZoneID)
	if err != nil {
		// Fan-out is skipped: at-most-once delivery to viewers for this
		// message. No retry.
		p.logger.Errorf("Commit failed for topic %s: %v", topic, err)
		p.alerts.NotifyPersistenceFailure(ctx, topic, err)
		if p.metrics != nil {
			p.metrics.CommitFailures.Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.RecordsCommitted.Inc()
	}
	p.broadcaster.PublishTopicUpdate(model.UpdateFromRecord(rec), entry.ZoneName)
}

// decodePayload parses raw bytes as a JSON object. Malformed payloads
// are still recorded for forensics: the bytes are preserved verbatim
// under a single raw field instead of being dropped.
func decodePayload(raw []byte) model.Payload {
	var payload model.Payload
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return model.Payload{"raw": string(raw)}
	}
	return payload
}

func (p *Pipeline) setState(state PipelineState, err error) {
	p.mu.Lock()
	p.state = state
	if err != nil {
		p.lastErr = err
	}
	p.mu.Unlock()
}

func (p *Pipeline) lifetimeContext() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.runCtx != nil {
		return p.runCtx
	}
	return context.Background()
}
