package telemetry

import "strings"

// topicSanitizer replaces the MQTT wildcard and separator characters.
// A raw "+" or "#" inside a subscription string changes its matching
// semantics on the broker, and "/" introduces an unintended level, so
// all three are replaced with an inert placeholder before use.
var topicSanitizer = strings.NewReplacer(
	"+", "_",
	"#", "_",
	"/", "_",
)

// BuildTopic derives the canonical topic name for a device×zone pair:
// the sanitized device number concatenated with the sanitized zone name,
// no delimiter.
//
//	BuildTopic("00009", "zone1") == "00009zone1"
//
// The result is deterministic and human-debuggable but deliberately not
// parseable back into its parts; the relational store, not the string,
// is authoritative for device/zone attribution.
func BuildTopic(deviceNumber, zoneName string) string {
	return SanitizeTopicPart(deviceNumber) + SanitizeTopicPart(zoneName)
}

// SanitizeTopicPart replaces MQTT wildcard/separator characters in a
// single topic component with "_".
func SanitizeTopicPart(part string) string {
	return topicSanitizer.Replace(part)
}
