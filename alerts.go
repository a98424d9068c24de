package telemetry

import "context"

// AlertService defines an optional interface for surfacing pipeline
// events to operators (connectivity drops, commit failures, dropped
// messages).
//
// Implementations might send emails, chat messages, or feed a
// monitoring system. None of these calls sit on the hot path's success
// branch except NotifyBusConnected, so implementations should still
// return promptly.
type AlertService interface {
	// NotifyBusConnectionLost is called when the broker connection
	// drops. The pipeline keeps running in a degraded state.
	NotifyBusConnectionLost(ctx context.Context, err error)

	// NotifyBusConnected is called after every successful (re)connect
	// and re-subscription cycle with the number of subscribed topics.
	NotifyBusConnected(ctx context.Context, subscribedTopics int)

	// NotifyPersistenceFailure is called when a record commit fails and
	// the message's fan-out is skipped.
	NotifyPersistenceFailure(ctx context.Context, topicName string, err error)

	// NotifyMessageDropped is called when a message arrives for a topic
	// unknown to the subscription registry.
	NotifyMessageDropped(ctx context.Context, topicName string)
}

// NoOpAlertService is a no-op implementation of AlertService.
// Use this when alerting is not needed.
type NoOpAlertService struct{}

// NotifyBusConnectionLost does nothing.
func (a *NoOpAlertService) NotifyBusConnectionLost(_ context.Context, _ error) {}

// NotifyBusConnected does nothing.
func (a *NoOpAlertService) NotifyBusConnected(_ context.Context, _ int) {}

// NotifyPersistenceFailure does nothing.
func (a *NoOpAlertService) NotifyPersistenceFailure(_ context.Context, _ string, _ error) {}

// NotifyMessageDropped does nothing.
func (a *NoOpAlertService) NotifyMessageDropped(_ context.Context, _ string) {}

// LoggingAlertService is a simple implementation that logs alerts.
type LoggingAlertService struct {
	logger Logger
}

// NewLoggingAlertService creates a new LoggingAlertService.
func NewLoggingAlertService(logger Logger) *LoggingAlertService {
	return &LoggingAlertService{logger: logger}
}

// NotifyBusConnectionLost logs the connectivity drop.
func (a *LoggingAlertService) NotifyBusConnectionLost(_ context.Context, err error) {
	a.logger.Warnf("ALERT bus connection lost: %v", err)
}

// NotifyBusConnected logs the restored connectivity.
func (a *LoggingAlertService) NotifyBusConnected(_ context.Context, subscribedTopics int) {
	a.logger.Infof("ALERT bus connected, %d topics subscribed", subscribedTopics)
}

// NotifyPersistenceFailure logs the failed commit.
func (a *LoggingAlertService) NotifyPersistenceFailure(_ context.Context, topicName string, err error) {
	a.logger.Errorf("ALERT persistence failure for topic %s: %v", topicName, err)
}

// NotifyMessageDropped logs the unattributed message.
func (a *LoggingAlertService) NotifyMessageDropped(_ context.Context, topicName string) {
	a.logger.Warnf("ALERT dropped message for unknown topic %s", topicName)
}
