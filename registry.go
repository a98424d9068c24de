package telemetry

import (
	"sync"

	"github.com/2saloni/agrolt-dashboard/model"
)

// SubscriptionEntry attributes a topic name to the device and zone it
// was derived from. Entries are process-lifetime only; the registry is
// rebuilt wholesale from the relational store on every bus (re)connect.
type SubscriptionEntry struct {
	TopicName    string
	DeviceID     int64
	DeviceNumber string
	ZoneID       int64
	ZoneName     string
}

// SubscriptionRegistry is the in-memory source of truth for routing
// inbound bus messages to persistence. A message for a topic absent from
// the registry is unattributable and must be dropped by the pipeline —
// blind persistence of stray bus traffic would blow up topic
// cardinality.
//
// Rebuilds are wholesale replacements, never incremental mutations, so
// readers only ever observe a complete subscription set. Safe for
// concurrent use.
type SubscriptionRegistry struct {
	mu      sync.RWMutex
	entries map[string]SubscriptionEntry
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		entries: make(map[string]SubscriptionEntry),
	}
}

// Rebuild replaces the registry contents with the topic set derived from
// the given devices: one entry per device×zone pair, keyed by
// BuildTopic(deviceNumber, zoneName). Returns the new entries in
// deterministic per-device order for the caller to subscribe to.
func (r *SubscriptionRegistry) Rebuild(devices []model.Device) []SubscriptionEntry {
	entries := make(map[string]SubscriptionEntry)
	ordered := make([]SubscriptionEntry, 0, len(devices))
	for _, dev := range devices {
		for _, zone := range dev.Zones {
			entry := SubscriptionEntry{
				TopicName:    BuildTopic(dev.DeviceNumber, zone.Name),
				DeviceID:     dev.ID,
				DeviceNumber: dev.DeviceNumber,
				ZoneID:       zone.ID,
				ZoneName:     zone.Name,
			}
			if _, dup := entries[entry.TopicName]; dup {
				// Two zones sanitizing to the same topic name: first wins,
				// the store remains authoritative for attribution.
				continue
			}
			entries[entry.TopicName] = entry
			ordered = append(ordered, entry)
		}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	return ordered
}

// Resolve returns the attribution entry for a topic name. The second
// return is false when the topic is unknown to the registry.
func (r *SubscriptionRegistry) Resolve(topicName string) (SubscriptionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[topicName]
	return entry, ok
}

// Len returns the number of registered topics.
func (r *SubscriptionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// TopicNames returns the registered topic names, in no particular order.
func (r *SubscriptionRegistry) TopicNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
