package ir

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", IRString("hello"), `"hello"`},
		{"empty string", IRString(""), `""`},
		{"int", IRInt(42), "42"},
		{"negative int", IRInt(-100), "-100"},
		{"max int64", IRInt(9223372036854775807), "9223372036854775807"},
		{"float", IRFloat(1.5), "1.5"},
		{"whole float keeps fraction", IRFloat(3), "3.0"},
		{"negative float", IRFloat(-0.25), "-0.25"},
		{"bool true", IRBool(true), "true"},
		{"null", IRNull{}, "null"},
		{"nil", nil, "null"},
		{"calendar date", NewCalendarDate(2024, time.March, 9), `"2024-03-09"`},
		{"timestamp", NewIRDate(time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)), `"2024-03-09T10:30:00Z"`},
		{"empty array", IRArray{}, "[]"},
		{"empty object", IRObject{}, "{}"},
		{"key", Key{IRInt(1), IRString("a")}, `[1,"a"]`},
		{"simple object", IRObject{"a": IRInt(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra": IRInt(1),
		"alpha": IRInt(2),
		"beta":  IRObject{"y": IRNull{}, "x": IRBool(false)},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":false,"y":null},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes as a surrogate pair starting 0xD800, which sorts
	// before U+E000 in UTF-16 but after it in UTF-8.
	obj := IRObject{
		"\uE000":     IRInt(1),
		"\U00010000": IRInt(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical(IRString("<script>a & b</script>"))
	require.NoError(t, err)
	assert.Equal(t, `"<script>a & b</script>"`, string(result))
}

func TestMarshalCanonicalStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"control", "a\x01b", `"a\u0001b"`},
		{"line separator", "a\u2028b", "\"a\u2028b\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(IRString(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalNFCNormalization(t *testing.T) {
	composed := "caf\u00E9"
	decomposed := "cafe\u0301"

	result1, err := MarshalCanonical(IRObject{composed: IRString(composed)})
	require.NoError(t, err)
	result2, err := MarshalCanonical(IRObject{decomposed: IRString(decomposed)})
	require.NoError(t, err)

	assert.Equal(t, result1, result2)
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(IRObject{"x": IRFloat(math.Inf(1))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite")
}

func TestMarshalCanonicalIdempotency(t *testing.T) {
	testCases := []IRValue{
		IRString("hello"),
		IRInt(42),
		IRFloat(2.0),
		IRFloat(1e21),
		IRBool(true),
		IRNull{},
		IRArray{IRInt(1), IRString("two"), IRFloat(0.5), IRNull{}},
		IRObject{
			"nested": IRObject{"array": IRArray{IRInt(1), IRInt(2)}},
			"simple": IRString("value"),
		},
	}

	for _, original := range testCases {
		canonical1, err := MarshalCanonical(original)
		require.NoError(t, err)

		val, err := DecodeValue(canonical1, TypeOf(original))
		require.NoError(t, err)

		canonical2, err := MarshalCanonical(val)
		require.NoError(t, err)
		assert.Equal(t, string(canonical1), string(canonical2))
	}
}

func TestCanonicalJSONStructs(t *testing.T) {
	p := &Plan{
		Version:      IRVersion,
		Strategy:     "balanced",
		PreferSource: "merge",
		KeyFields:    []string{"id"},
		Actions: []Action{{
			Ref:       ChangeRef{Section: SectionRow, Index: 0},
			Key:       Key{IRInt(2)},
			Change:    ChangeAdded,
			Kind:      ActionAccept,
			Value:     IRObject{"id": IRInt(2), "score": IRFloat(1)},
			ValueType: TypeObject,
			Rationale: "added record",
		}},
	}

	a, err := CanonicalJSON(p)
	require.NoError(t, err)
	b, err := CanonicalJSON(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"score":1.0`)
	assert.Contains(t, string(a), `"key":[2]`)
}

func FuzzMarshalCanonicalIdempotent(f *testing.F) {
	f.Add(`{"a":1,"b":"test"}`)
	f.Add(`[1,2.5,3]`)
	f.Add(`"hello"`)
	f.Add(`null`)
	f.Add(`{"nested":{"deep":{"value":123}}}`)

	f.Fuzz(func(t *testing.T, jsonStr string) {
		val, err := DecodeValue([]byte(jsonStr), "")
		if err != nil {
			t.Skip()
		}
		canonical1, err := MarshalCanonical(val)
		if err != nil {
			t.Skip()
		}
		val2, err := DecodeValue(canonical1, "")
		require.NoError(t, err)
		canonical2, err := MarshalCanonical(val2)
		require.NoError(t, err)
		assert.Equal(t, canonical1, canonical2)
	})
}
