package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2saloni/agrolt-dashboard/model"
)

// fakeBus is an in-memory BusConnection. Tests trigger lifecycle
// callbacks directly to simulate broker connects and drops.
type fakeBus struct {
	mu            sync.Mutex
	connected     bool
	connectErr    error
	subscribeErrs map[string]error
	subscriptions map[string]MessageHandler
	subscribeLog  []string

	onConnect func()
	onLost    func(error)
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		subscriptions: make(map[string]MessageHandler),
		subscribeErrs: make(map[string]error),
	}
}

func (b *fakeBus) Connect(_ context.Context, onConnect func(), onLost func(error)) error {
	if b.connectErr != nil {
		return b.connectErr
	}
	b.mu.Lock()
	b.connected = true
	b.onConnect = onConnect
	b.onLost = onLost
	b.mu.Unlock()
	onConnect()
	return nil
}

func (b *fakeBus) Subscribe(topic string, handler MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeLog = append(b.subscribeLog, topic)
	if err := b.subscribeErrs[topic]; err != nil {
		return err
	}
	b.subscriptions[topic] = handler
	return nil
}

func (b *fakeBus) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBus) Disconnect() {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
}

// dropAndReconnect simulates a broker-level drop followed by the
// client's automatic reconnect, firing both lifecycle callbacks the way
// the paho adapter would.
func (b *fakeBus) dropAndReconnect(err error) {
	b.mu.Lock()
	b.connected = false
	b.subscriptions = make(map[string]MessageHandler)
	onLost, onConnect := b.onLost, b.onConnect
	b.mu.Unlock()

	onLost(err)

	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	onConnect()
}

func (b *fakeBus) subscribedTopics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	topics := make([]string, 0, len(b.subscriptions))
	for topic := range b.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

type fakeDeviceRepo struct {
	mu      sync.Mutex
	devices []model.Device
	listErr error
	pingErr error
}

func (r *fakeDeviceRepo) ListWithZones(_ context.Context) ([]model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.devices, nil
}

func (r *fakeDeviceRepo) Ping(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pingErr
}

func (r *fakeDeviceRepo) setDevices(devices []model.Device) {
	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()
}

type broadcastCall struct {
	update   model.TopicUpdate
	zoneName string
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *recordingBroadcaster) PublishTopicUpdate(update model.TopicUpdate, zoneName string) {
	b.mu.Lock()
	b.calls = append(b.calls, broadcastCall{update: update, zoneName: zoneName})
	b.mu.Unlock()
}

func (b *recordingBroadcaster) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type recordingAlerts struct {
	mu           sync.Mutex
	lost         int
	connected    int
	dropped      []string
	persistDowns []string
}

func (a *recordingAlerts) NotifyBusConnectionLost(_ context.Context, _ error) {
	a.mu.Lock()
	a.lost++
	a.mu.Unlock()
}

func (a *recordingAlerts) NotifyBusConnected(_ context.Context, _ int) {
	a.mu.Lock()
	a.connected++
	a.mu.Unlock()
}

func (a *recordingAlerts) NotifyPersistenceFailure(_ context.Context, topicName string, _ error) {
	a.mu.Lock()
	a.persistDowns = append(a.persistDowns, topicName)
	a.mu.Unlock()
}

func (a *recordingAlerts) NotifyMessageDropped(_ context.Context, topicName string) {
	a.mu.Lock()
	a.dropped = append(a.dropped, topicName)
	a.mu.Unlock()
}

type pipelineFixture struct {
	pipeline    *Pipeline
	bus         *fakeBus
	deviceRepo  *fakeDeviceRepo
	repo        *memTopicRepo
	broadcaster *recordingBroadcaster
	alerts      *recordingAlerts
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		bus:         newFakeBus(),
		deviceRepo:  &fakeDeviceRepo{devices: testDevices()},
		repo:        newMemTopicRepo(),
		broadcaster: &recordingBroadcaster{},
		alerts:      &recordingAlerts{},
	}

	store := newTestStore(t, f.repo)

	var err error
	f.pipeline, err = NewPipeline(
		WithPipelineBus(f.bus),
		WithPipelineDeviceRepository(f.deviceRepo),
		WithPipelineStore(store),
		WithPipelineLogger(&NoopLogger{}),
		WithPipelineBroadcaster(f.broadcaster),
		WithPipelineAlerts(f.alerts),
	)
	require.NoError(t, err)
	return f
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	store := newTestStore(t, newMemTopicRepo())

	tests := []struct {
		name string
		opts []PipelineOption
		want string
	}{
		{
			name: "missing bus",
			opts: []PipelineOption{
				WithPipelineDeviceRepository(&fakeDeviceRepo{}),
				WithPipelineStore(store),
				WithPipelineLogger(&NoopLogger{}),
			},
			want: "BusConnection is required",
		},
		{
			name: "missing device repository",
			opts: []PipelineOption{
				WithPipelineBus(newFakeBus()),
				WithPipelineStore(store),
				WithPipelineLogger(&NoopLogger{}),
			},
			want: "DeviceRepository is required",
		},
		{
			name: "missing store",
			opts: []PipelineOption{
				WithPipelineBus(newFakeBus()),
				WithPipelineDeviceRepository(&fakeDeviceRepo{}),
				WithPipelineLogger(&NoopLogger{}),
			},
			want: "VersionedStore is required",
		},
		{
			name: "missing logger",
			opts: []PipelineOption{
				WithPipelineBus(newFakeBus()),
				WithPipelineDeviceRepository(&fakeDeviceRepo{}),
				WithPipelineStore(store),
			},
			want: "Logger is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPipeline_StartFailsFastWhenStoreUnreachable(t *testing.T) {
	f := newPipelineFixture(t)
	f.deviceRepo.pingErr = errors.New("connection refused")

	err := f.pipeline.Start(context.Background())
	require.Error(t, err)

	var telErr *Error
	require.ErrorAs(t, err, &telErr)
	assert.Equal(t, ErrCodeConnectivity, telErr.Code)
	assert.Equal(t, StateDisconnected, f.pipeline.State())
	assert.False(t, f.bus.IsConnected(), "bus must not be contacted when the store probe fails")
}

func TestPipeline_StartSurfacesBusConnectFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.bus.connectErr = errors.New("broker unreachable")

	err := f.pipeline.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, f.pipeline.State())
}

func TestPipeline_StartSubscribesToDerivedTopics(t *testing.T) {
	f := newPipelineFixture(t)

	require.NoError(t, f.pipeline.Start(context.Background()))

	assert.Equal(t, StateLive, f.pipeline.State())
	assert.ElementsMatch(t,
		[]string{"00009zone1", "00009zone2", "00010zone1"},
		f.bus.subscribedTopics())

	status := f.pipeline.Status()
	assert.Equal(t, "live", status.State)
	assert.Equal(t, 3, status.SubscribedTopics)
	assert.True(t, status.BusConnected)
	assert.Equal(t, 1, f.alerts.connected)
}

func TestPipeline_SubscribeFailureSkipsTopicOnly(t *testing.T) {
	f := newPipelineFixture(t)
	f.bus.subscribeErrs["00009zone2"] = errors.New("not authorized")

	require.NoError(t, f.pipeline.Start(context.Background()))

	assert.Equal(t, StateLive, f.pipeline.State())
	assert.ElementsMatch(t,
		[]string{"00009zone1", "00010zone1"},
		f.bus.subscribedTopics())
	assert.Equal(t, 2, f.pipeline.Status().SubscribedTopics)
}

func TestPipeline_ReconnectRederivesFullTopicSet(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))
	require.Equal(t, 3, f.pipeline.Registry().Len())

	// Device set changes while the broker connection is down. The next
	// reconnect must re-derive the full topic set, not just resubscribe
	// the previously active subset.
	devices := testDevices()
	devices[0].Zones = append(devices[0].Zones, model.Zone{ID: 12, Name: "zone3", DeviceID: 1})
	f.deviceRepo.setDevices(devices)

	f.bus.dropAndReconnect(errors.New("EOF"))

	assert.Equal(t, StateLive, f.pipeline.State())
	assert.Equal(t, 4, f.pipeline.Registry().Len())
	assert.ElementsMatch(t,
		[]string{"00009zone1", "00009zone2", "00009zone3", "00010zone1"},
		f.bus.subscribedTopics())
	assert.Equal(t, 1, f.alerts.lost)
	assert.Equal(t, 2, f.alerts.connected)
}

func TestPipeline_ListFailureDuringReconnectKeepsRegistry(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.deviceRepo.mu.Lock()
	f.deviceRepo.listErr = errors.New("store down")
	f.deviceRepo.mu.Unlock()

	f.bus.dropAndReconnect(errors.New("EOF"))

	// Degraded but alive: previous attribution survives so in-flight
	// messages for known topics still resolve.
	assert.Equal(t, 3, f.pipeline.Registry().Len())
	status := f.pipeline.Status()
	assert.Equal(t, "live", status.State)
	assert.Contains(t, status.LastError, "store down")
}

func TestPipeline_HandleMessageCommitsAndBroadcasts(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.pipeline.HandleMessage("00009zone1", []byte(`{"data":{"tempData":[255]}}`))

	require.Equal(t, 1, f.broadcaster.callCount())
	call := f.broadcaster.calls[0]
	assert.Equal(t, "00009zone1", call.update.Name)
	assert.Equal(t, "zone1", call.zoneName)
	assert.Equal(t, int64(1), call.update.DeviceID)
	assert.Equal(t, int64(10), call.update.ZoneID)

	rec, err := f.repo.Latest(context.Background(), "00009zone1")
	require.NoError(t, err)
	assert.True(t, rec.IsLatest)

	// zone1 tempData fields carry one implied decimal place.
	data, ok := rec.Payload["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"25.5"}, data["tempData"])
}

func TestPipeline_HandleMessageDropsUnattributedTopic(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.pipeline.HandleMessage("strayTopic", []byte(`{"data":{}}`))

	assert.Equal(t, 0, f.broadcaster.callCount())
	assert.Equal(t, 0, f.repo.totalCount("strayTopic"))
	assert.Equal(t, []string{"strayTopic"}, f.alerts.dropped)
}

func TestPipeline_HandleMessageSkipsBroadcastOnCommitFailure(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.repo.commitErr = errors.New("disk full")
	f.pipeline.HandleMessage("00009zone1", []byte(`{"data":{}}`))

	assert.Equal(t, 0, f.broadcaster.callCount())
	assert.Equal(t, []string{"00009zone1"}, f.alerts.persistDowns)
}

func TestPipeline_HandleMessagePreservesMalformedPayload(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.pipeline.HandleMessage("00009zone1", []byte(`not json at all`))

	rec, err := f.repo.Latest(context.Background(), "00009zone1")
	require.NoError(t, err)
	assert.Equal(t, "not json at all", rec.Payload["raw"])
	assert.Equal(t, 1, f.broadcaster.callCount())
}

func TestPipeline_StopDisconnectsBus(t *testing.T) {
	f := newPipelineFixture(t)
	require.NoError(t, f.pipeline.Start(context.Background()))

	f.pipeline.Stop()

	assert.False(t, f.bus.IsConnected())
	assert.Equal(t, StateDisconnected, f.pipeline.State())
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.Payload
	}{
		{
			name: "valid object",
			raw:  `{"a":1}`,
			want: model.Payload{"a": 1.0},
		},
		{
			name: "malformed",
			raw:  `{{`,
			want: model.Payload{"raw": "{{"},
		},
		{
			name: "json null",
			raw:  `null`,
			want: model.Payload{"raw": "null"},
		},
		{
			name: "json array",
			raw:  `[1,2]`,
			want: model.Payload{"raw": "[1,2]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodePayload([]byte(tt.raw)))
		})
	}
}

func TestPipelineState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "subscribing", StateSubscribing.String())
	assert.Equal(t, "live", StateLive.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", PipelineState(99).String())
}
