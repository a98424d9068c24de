package normalize

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2saloni/agrolt-dashboard/model"
)

func TestConvertDecimalPlace(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{345, "34.5"},
		{400, "40.0"},
		{0, "0"},
		{5, "0.5"},
		{-15, "-1.5"},
		{1000, "100.0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConvertDecimalPlace(tt.in), "ConvertDecimalPlace(%d)", tt.in)
	}
}

func TestConvertTo8BitSignedBinary(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "00000000"},
		{1, "00000001"},
		{127, "01111111"},
		{-1, "11111111"},
		{-128, "10000000"},
		{200, "01111111"},  // clamped to 127
		{-500, "10000000"}, // clamped to -128
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConvertTo8BitSignedBinary(tt.in), "ConvertTo8BitSignedBinary(%d)", tt.in)
	}
}

func TestNormalize_DecimalFields(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			"tempData": []interface{}{255.0, 400.0, 0.0},
			"humData":  []interface{}{612.0},
		},
	}

	out := n.Normalize("00009zone1", payload)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"25.5", "40.0", "0"}, data["tempData"])
	assert.Equal(t, []interface{}{"61.2"}, data["humData"])
}

func TestNormalize_BinaryFields(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			"valveState": []interface{}{0.0, 1.0, -1.0, 255.0},
		},
	}

	out := n.Normalize("00010zone3", payload)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"00000000", "00000001", "11111111", "01111111"}, data["valveState"])
}

func TestNormalize_AsIsFieldsPassThrough(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			// "rawTemp" matches both the as-is and the decimal pattern;
			// as-is is checked first and wins.
			"rawTemp":  []interface{}{255.0},
			"rssiData": []interface{}{-70.0},
		},
	}

	out := n.Normalize("00009zone1", payload)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{255.0}, data["rawTemp"])
	assert.Equal(t, []interface{}{-70.0}, data["rssiData"])
}

func TestNormalize_UnclassifiedPassThrough(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			"lux": []interface{}{500.0},
		},
	}

	out := n.Normalize("unhinted", payload)

	// No zone type means no rewrite at all; the same payload comes back.
	assert.Equal(t, payload, out)
	assert.Equal(t, []interface{}{500.0}, out["data"].(map[string]interface{})["lux"])
}

func TestNormalize_NonArrayAndNonIntegerElementsUntouched(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			"tempSetpoint": 255.0, // scalar, never transformed
			"tempData":     []interface{}{255.0, "already-a-string", 25.5, nil},
		},
	}

	out := n.Normalize("00009zone1", payload)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, 255.0, data["tempSetpoint"])
	assert.Equal(t, []interface{}{"25.5", "already-a-string", 25.5, nil}, data["tempData"])
}

func TestNormalize_InputNeverMutated(t *testing.T) {
	n := NewNormalizer()
	payload := model.Payload{
		"data": map[string]interface{}{
			"tempData":   []interface{}{255.0},
			"valveState": []interface{}{1.0},
		},
	}

	_ = n.Normalize("00009zone1", payload)

	data := payload["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{255.0}, data["tempData"], "input payload must stay untouched")
	assert.Equal(t, []interface{}{1.0}, data["valveState"])
}

func TestNormalize_NilAndMissingData(t *testing.T) {
	n := NewNormalizer()

	assert.Nil(t, n.Normalize("00009zone1", nil))

	out := n.Normalize("00009zone1", model.Payload{"meta": "no data object"})
	assert.Equal(t, model.Payload{"meta": "no data object"}, out)
}

func TestNormalize_CustomPatterns(t *testing.T) {
	n := NewNormalizer(WithPatterns(
		nil,
		regexp.MustCompile(`^lux`),
		nil,
	))
	payload := model.Payload{
		"data": map[string]interface{}{
			"luxData": []interface{}{123.0},
		},
	}

	out := n.Normalize("00009zone1", payload)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"12.3"}, data["luxData"])
}

type fixedClassifier struct{ zone ZoneType }

func (c fixedClassifier) Classify(string, model.Payload) ZoneType { return c.zone }

func TestNormalize_CustomClassifier(t *testing.T) {
	n := NewNormalizer(WithClassifier(fixedClassifier{ZoneType2}))
	payload := model.Payload{
		"data": map[string]interface{}{
			"soilMoisture": []interface{}{712.0},
		},
	}

	out := n.Normalize("no-hint-anywhere", payload)

	require.NotNil(t, out)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"71.2"}, data["soilMoisture"])
}
