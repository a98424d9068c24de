package telemetry

import "github.com/2saloni/agrolt-dashboard/model"

// Broadcaster is the fan-out surface the pipeline hands committed
// records to. The production implementation is the WebSocket hub in the
// ws package; tests substitute a recorder.
//
// PublishTopicUpdate must deliver the update to three room classes:
// the per-topic compatibility room ("topic:<name>"), the global
// "all-topics" room, and — when zoneName is non-empty — the per-zone
// room named after the zone. Delivery is fire-and-forget; the pipeline
// neither waits for nor learns about individual viewer outcomes.
type Broadcaster interface {
	PublishTopicUpdate(update model.TopicUpdate, zoneName string)
}

// NoopBroadcaster drops all updates. Used when running the pipeline
// headless (ingest and persist only) and in tests.
type NoopBroadcaster struct{}

// PublishTopicUpdate implements Broadcaster as a no-op.
func (NoopBroadcaster) PublishTopicUpdate(_ model.TopicUpdate, _ string) {}
