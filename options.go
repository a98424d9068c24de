package telemetry

import (
	"fmt"

	"github.com/2saloni/agrolt-dashboard/normalize"
)

// PipelineOption is a function that configures a Pipeline.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	pipeline, err := telemetry.NewPipeline(
//	    telemetry.WithPipelineBus(bus),
//	    telemetry.WithPipelineDeviceRepository(deviceRepo),
//	    telemetry.WithPipelineStore(store),
//	    telemetry.WithPipelineBroadcaster(hub),
//	    telemetry.WithPipelineLogger(logger),
//	)
type PipelineOption func(*Pipeline) error

// WithPipelineBus sets the required bus connection. The pipeline owns
// the connection lifecycle from Start to Stop.
func WithPipelineBus(bus BusConnection) PipelineOption {
	return func(p *Pipeline) error {
		if bus == nil {
			return fmt.Errorf("bus cannot be nil")
		}
		p.bus = bus
		return nil
	}
}

// WithPipelineDeviceRepository sets the required device/zone read
// access used for subscription derivation and the startup probe.
func WithPipelineDeviceRepository(repo DeviceRepository) PipelineOption {
	return func(p *Pipeline) error {
		if repo == nil {
			return fmt.Errorf("deviceRepo cannot be nil")
		}
		p.deviceRepo = repo
		return nil
	}
}

// WithPipelineStore sets the required versioned store.
func WithPipelineStore(store *VersionedStore) PipelineOption {
	return func(p *Pipeline) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		p.store = store
		return nil
	}
}

// WithPipelineLogger sets the required logger instance.
func WithPipelineLogger(logger Logger) PipelineOption {
	return func(p *Pipeline) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithPipelineBroadcaster sets the fan-out target for committed
// records. Optional; defaults to NoopBroadcaster (headless ingest).
func WithPipelineBroadcaster(b Broadcaster) PipelineOption {
	return func(p *Pipeline) error {
		if b == nil {
			return fmt.Errorf("broadcaster cannot be nil")
		}
		p.broadcaster = b
		return nil
	}
}

// WithPipelineNormalizer replaces the default payload normalizer.
// Optional; defaults to normalize.NewNormalizer().
func WithPipelineNormalizer(n *normalize.Normalizer) PipelineOption {
	return func(p *Pipeline) error {
		if n == nil {
			return fmt.Errorf("normalizer cannot be nil")
		}
		p.normalizer = n
		return nil
	}
}

// WithPipelineRegistry replaces the default empty subscription
// registry. Optional; useful for pre-seeding in tests.
func WithPipelineRegistry(r *SubscriptionRegistry) PipelineOption {
	return func(p *Pipeline) error {
		if r == nil {
			return fmt.Errorf("registry cannot be nil")
		}
		p.registry = r
		return nil
	}
}

// WithPipelineAlerts sets the alert service notified of connectivity
// and persistence failures. Optional; defaults to NoOpAlertService.
func WithPipelineAlerts(a AlertService) PipelineOption {
	return func(p *Pipeline) error {
		if a == nil {
			return fmt.Errorf("alerts cannot be nil")
		}
		p.alerts = a
		return nil
	}
}

// WithPipelineMetrics sets the Prometheus metrics collection.
// Optional; when unset no metrics are recorded.
func WithPipelineMetrics(m *Metrics) PipelineOption {
	return func(p *Pipeline) error {
		if m == nil {
			return fmt.Errorf("metrics cannot be nil")
		}
		p.metrics = m
		return nil
	}
}
