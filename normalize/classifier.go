// Package normalize rewrites telemetry payloads into the encodings the
// dashboard expects for each zone's firmware generation. It is the only
// business-logic transform in the ingestion pipeline: classification of a
// payload into a zone type, then per-field rewriting of integer arrays
// into fixed-point decimal strings or 8-bit two's-complement binary
// strings, selected by field-name pattern.
package normalize

import (
	"strings"

	"github.com/2saloni/agrolt-dashboard/model"
)

// ZoneType identifies the firmware field layout a payload was produced
// by. ZoneTypeUnknown payloads pass through the normalizer unchanged.
type ZoneType int

// Known zone types. The zero value is deliberately "unknown" so that an
// unclassified payload never gets transformed.
const (
	ZoneTypeUnknown ZoneType = iota
	ZoneType1                // climate head unit (air temperature / humidity arrays)
	ZoneType2                // soil probe array (moisture / conductivity / pH)
	ZoneType3                // actuator controller (valve / pump bitfields)
)

// String returns the string representation of a ZoneType.
func (z ZoneType) String() string {
	switch z {
	case ZoneType1:
		return "zone1"
	case ZoneType2:
		return "zone2"
	case ZoneType3:
		return "zone3"
	default:
		return "unknown"
	}
}

// Classifier decides which firmware layout produced a payload. New
// firmware field layouts are added by supplying a different Classifier;
// the transform core does not change.
type Classifier interface {
	// Classify returns the zone type for a payload received on topicName.
	// Implementations must be pure and safe for concurrent use.
	Classify(topicName string, payload model.Payload) ZoneType
}

// TopicHintClassifier classifies by topic-name substring. Topic names
// embed the zone name (see telemetry.BuildTopic), so a topic for zone
// "zone2" contains the literal "zone2".
type TopicHintClassifier struct{}

// Classify returns the zone type hinted at by the topic name, or
// ZoneTypeUnknown when no hint is present.
func (TopicHintClassifier) Classify(topicName string, _ model.Payload) ZoneType {
	// Check higher-numbered zones first: "zone1" is a prefix of nothing
	// today, but future sequences (zone10, ...) must not be shadowed.
	for _, hint := range []struct {
		substr string
		zone   ZoneType
	}{
		{"zone3", ZoneType3},
		{"zone2", ZoneType2},
		{"zone1", ZoneType1},
	} {
		if strings.Contains(topicName, hint.substr) {
			return hint.zone
		}
	}
	return ZoneTypeUnknown
}

// fingerprints maps each zone type to the field-name prefixes whose
// presence in the data object identifies its firmware layout. Checked in
// declaration order; the first match wins.
var fingerprints = []struct {
	zone     ZoneType
	prefixes []string
}{
	{ZoneType1, []string{"temp", "hum"}},
	{ZoneType2, []string{"soil", "ec", "ph"}},
	{ZoneType3, []string{"valve", "pump", "relay"}},
}

// FieldFingerprintClassifier classifies structurally, by the field names
// present in the payload's data object. Used when the topic name carries
// no zone hint (e.g. replayed or bridged traffic).
type FieldFingerprintClassifier struct{}

// Classify inspects the data object's field names and returns the first
// zone type whose fingerprint matches, or ZoneTypeUnknown.
func (FieldFingerprintClassifier) Classify(_ string, payload model.Payload) ZoneType {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return ZoneTypeUnknown
	}
	for _, fp := range fingerprints {
		for name := range data {
			lower := strings.ToLower(name)
			for _, prefix := range fp.prefixes {
				if strings.HasPrefix(lower, prefix) {
					return fp.zone
				}
			}
		}
	}
	return ZoneTypeUnknown
}

// ChainClassifier tries each classifier in order and returns the first
// non-unknown result.
type ChainClassifier []Classifier

// Classify implements Classifier.
func (c ChainClassifier) Classify(topicName string, payload model.Payload) ZoneType {
	for _, cl := range c {
		if z := cl.Classify(topicName, payload); z != ZoneTypeUnknown {
			return z
		}
	}
	return ZoneTypeUnknown
}

// DefaultClassifier returns the production classification chain: topic
// substring hint first, structural field fingerprint as fallback.
func DefaultClassifier() Classifier {
	return ChainClassifier{TopicHintClassifier{}, FieldFingerprintClassifier{}}
}

// compile-time interface checks
var (
	_ Classifier = TopicHintClassifier{}
	_ Classifier = FieldFingerprintClassifier{}
	_ Classifier = ChainClassifier(nil)
)
