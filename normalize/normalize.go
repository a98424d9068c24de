package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/2saloni/agrolt-dashboard/model"
)

// Field-name pattern classes. The three classes are mutually exclusive;
// they are checked in the order as-is, decimal, binary, so an explicit
// pass-through tag always wins.
var (
	// defaultAsIsPattern tags fields that must never be rewritten even
	// though their name could drift into another class in a future
	// firmware revision (signal strength, battery level, raw dumps).
	defaultAsIsPattern = regexp.MustCompile(`(?i)^(raw|rssi|batt)`)

	// defaultDecimalPattern tags readings the firmware delivers in
	// tenths: air/soil temperature, humidity, conductivity, pH.
	defaultDecimalPattern = regexp.MustCompile(`(?i)^(temp|hum|soil|ec|ph)`)

	// defaultBinaryPattern tags actuator bitfields rendered for the
	// dashboard as two's-complement binary strings.
	defaultBinaryPattern = regexp.MustCompile(`(?i)^(valve|pump|relay|stat)`)
)

// Normalizer rewrites classified payloads field by field. It is pure:
// the input payload is never mutated, and the same input always yields
// the same output. Safe for concurrent use.
type Normalizer struct {
	classifier Classifier
	asis       *regexp.Regexp
	decimal    *regexp.Regexp
	binary     *regexp.Regexp
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClassifier replaces the default zone-type classification chain.
func WithClassifier(c Classifier) Option {
	return func(n *Normalizer) {
		if c != nil {
			n.classifier = c
		}
	}
}

// WithPatterns replaces the field-name patterns for the three classes.
// A nil pattern keeps the default for that class.
func WithPatterns(asis, decimal, binary *regexp.Regexp) Option {
	return func(n *Normalizer) {
		if asis != nil {
			n.asis = asis
		}
		if decimal != nil {
			n.decimal = decimal
		}
		if binary != nil {
			n.binary = binary
		}
	}
}

// NewNormalizer creates a Normalizer with the default classifier and
// field patterns, then applies the given options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		classifier: DefaultClassifier(),
		asis:       defaultAsIsPattern,
		decimal:    defaultDecimalPattern,
		binary:     defaultBinaryPattern,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize classifies the payload received on topicName and, for
// classified payloads, rewrites every array-valued field of the nested
// data object according to its pattern class:
//
//   - decimal fields: integer elements become fixed-point strings with
//     one decimal digit (the firmware sends tenths), 0 renders as "0"
//   - binary fields: integer elements are clamped to [-128, 127] and
//     rendered as 8-character two's-complement binary strings
//   - everything else (including the explicit as-is class) is unchanged
//
// Non-array fields are never transformed. Unclassified payloads are
// returned as-is. The returned payload is a deep copy; the input is
// never mutated.
func (n *Normalizer) Normalize(topicName string, payload model.Payload) model.Payload {
	if payload == nil {
		return nil
	}
	if n.classifier.Classify(topicName, payload) == ZoneTypeUnknown {
		return payload
	}

	out := payload.DeepCopy()
	data, ok := out["data"].(map[string]interface{})
	if !ok {
		return out
	}
	for name, value := range data {
		arr, ok := value.([]interface{})
		if !ok {
			continue
		}
		switch {
		case n.asis.MatchString(name):
			// explicit pass-through class
		case n.decimal.MatchString(name):
			data[name] = convertElements(arr, ConvertDecimalPlace)
		case n.binary.MatchString(name):
			data[name] = convertElements(arr, ConvertTo8BitSignedBinary)
		}
	}
	return out
}

// convertElements applies conv to every integer element of arr. Elements
// that are not integers (strings, nested structures, fractional numbers)
// are left in place untouched.
func convertElements(arr []interface{}, conv func(int) string) []interface{} {
	for i, el := range arr {
		if v, ok := intValue(el); ok {
			arr[i] = conv(v)
		}
	}
	return arr
}

// intValue extracts an integer from the loosely typed values a JSON
// decode produces. float64 values qualify only when they are whole.
func intValue(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == float64(int64(t)) {
			return int(t), true
		}
		return 0, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ConvertDecimalPlace renders a reading delivered in tenths as a
// fixed-point string with exactly one decimal digit:
//
//	ConvertDecimalPlace(345) == "34.5"
//	ConvertDecimalPlace(400) == "40.0"
//	ConvertDecimalPlace(0)   == "0"
func ConvertDecimalPlace(v int) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(v)/10, 'f', 1, 64)
}

// ConvertTo8BitSignedBinary clamps v to the signed 8-bit range
// [-128, 127] and renders it as an 8-character two's-complement binary
// string, most significant bit first:
//
//	ConvertTo8BitSignedBinary(-1)  == "11111111"
//	ConvertTo8BitSignedBinary(127) == "01111111"
func ConvertTo8BitSignedBinary(v int) string {
	if v < -128 {
		v = -128
	}
	if v > 127 {
		v = 127
	}
	return fmt.Sprintf("%08b", uint8(int8(v)))
}
