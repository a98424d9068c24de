package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2saloni/agrolt-dashboard/model"
)

func testDevices() []model.Device {
	return []model.Device{
		{
			ID:           1,
			DeviceNumber: "00009",
			Zones: []model.Zone{
				{ID: 10, Name: "zone1", DeviceID: 1},
				{ID: 11, Name: "zone2", DeviceID: 1},
			},
		},
		{
			ID:           2,
			DeviceNumber: "00010",
			Zones: []model.Zone{
				{ID: 20, Name: "zone1", DeviceID: 2},
			},
		},
	}
}

func TestSubscriptionRegistry_Rebuild(t *testing.T) {
	r := NewSubscriptionRegistry()

	entries := r.Rebuild(testDevices())

	require.Len(t, entries, 3)
	assert.Equal(t, 3, r.Len())

	entry, ok := r.Resolve("00009zone1")
	require.True(t, ok)
	assert.Equal(t, int64(1), entry.DeviceID)
	assert.Equal(t, int64(10), entry.ZoneID)
	assert.Equal(t, "zone1", entry.ZoneName)
	assert.Equal(t, "00009", entry.DeviceNumber)

	entry, ok = r.Resolve("00010zone1")
	require.True(t, ok)
	assert.Equal(t, int64(2), entry.DeviceID)
	assert.Equal(t, int64(20), entry.ZoneID)
}

func TestSubscriptionRegistry_ResolveUnknown(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Rebuild(testDevices())

	_, ok := r.Resolve("strayTopic")
	assert.False(t, ok)
}

func TestSubscriptionRegistry_RebuildIsWholesale(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Rebuild(testDevices())
	require.Equal(t, 3, r.Len())

	// A rebuild from a shrunken device set must not leave stale entries.
	r.Rebuild([]model.Device{
		{
			ID:           2,
			DeviceNumber: "00010",
			Zones:        []model.Zone{{ID: 20, Name: "zone1", DeviceID: 2}},
		},
	})

	assert.Equal(t, 1, r.Len())
	_, ok := r.Resolve("00009zone1")
	assert.False(t, ok)
	_, ok = r.Resolve("00010zone1")
	assert.True(t, ok)
}

func TestSubscriptionRegistry_SanitizesDerivedTopics(t *testing.T) {
	r := NewSubscriptionRegistry()
	r.Rebuild([]model.Device{
		{
			ID:           1,
			DeviceNumber: "00+09",
			Zones:        []model.Zone{{ID: 10, Name: "zone#1", DeviceID: 1}},
		},
	})

	_, ok := r.Resolve("00_09zone_1")
	assert.True(t, ok)
}

func TestSubscriptionRegistry_DuplicateTopicFirstWins(t *testing.T) {
	r := NewSubscriptionRegistry()
	entries := r.Rebuild([]model.Device{
		{
			ID:           1,
			DeviceNumber: "00009",
			Zones: []model.Zone{
				{ID: 10, Name: "zone+1", DeviceID: 1},
				{ID: 11, Name: "zone#1", DeviceID: 1}, // sanitizes to the same topic
			},
		},
	})

	require.Len(t, entries, 1)
	entry, ok := r.Resolve("00009zone_1")
	require.True(t, ok)
	assert.Equal(t, int64(10), entry.ZoneID)
}
