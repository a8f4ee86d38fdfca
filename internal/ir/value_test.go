package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(1.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = NewCalendarDate(2024, time.January, 1)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectGetMissingIsNull(t *testing.T) {
	obj := IRObject{"a": IRInt(1), "b": nil}
	assert.Equal(t, IRInt(1), obj.Get("a"))
	assert.Equal(t, IRNull{}, obj.Get("b"))
	assert.Equal(t, IRNull{}, obj.Get("missing"))
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(TypeInteger, TypeFloat))
	assert.True(t, Compatible(TypeNull, TypeDate))
	assert.True(t, Compatible(TypeString, TypeString))
	assert.False(t, Compatible(TypeString, TypeInteger))
	assert.False(t, Compatible(TypeBoolean, TypeDate))
}

func TestCompareValuesTypeRank(t *testing.T) {
	ordered := []IRValue{
		IRNull{},
		IRBool(false),
		IRBool(true),
		IRInt(-3),
		IRFloat(0.5),
		IRInt(1),
		IRFloat(1),
		NewCalendarDate(2020, time.May, 1),
		IRString("a"),
		IRString("b"),
		IRArray{IRInt(1)},
		IRObject{"a": IRInt(1)},
	}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, CompareValues(ordered[i], ordered[i+1]), "index %d", i)
		assert.Equal(t, 1, CompareValues(ordered[i+1], ordered[i]), "index %d", i)
	}
	assert.Equal(t, 0, CompareValues(IRString("x"), IRString("x")))
}

func TestEqualDistinguishesIntAndFloat(t *testing.T) {
	assert.True(t, Equal(IRInt(1), IRInt(1)))
	assert.False(t, Equal(IRInt(1), IRFloat(1)))
	assert.True(t, Equal(nil, IRNull{}))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in       string
		ok       bool
		dateOnly bool
		out      string
	}{
		{"2024-02-29", true, true, "2024-02-29"},
		{"2024-02-30", false, false, ""},
		{"2024-03-09T10:30:00Z", true, false, "2024-03-09T10:30:00Z"},
		{"2024-03-09T12:30:00+02:00", true, false, "2024-03-09T10:30:00Z"},
		{"2024-03-09 10:30:00", true, false, "2024-03-09T10:30:00Z"},
		{"not a date", false, false, ""},
		{"12345", false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.dateOnly, d.DateOnly())
			assert.Equal(t, tt.out, d.String())
		})
	}
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"n":   json.Number("3"),
		"f":   json.Number("3.0"),
		"s":   "x",
		"b":   true,
		"nil": nil,
		"arr": []any{int64(1), 2.5},
	})
	require.NoError(t, err)
	obj := v.(IRObject)
	assert.Equal(t, IRInt(3), obj["n"])
	assert.Equal(t, IRFloat(3), obj["f"])
	assert.Equal(t, IRString("x"), obj["s"])
	assert.Equal(t, IRBool(true), obj["b"])
	assert.Equal(t, IRNull{}, obj["nil"])
	assert.Equal(t, IRArray{IRInt(1), IRFloat(2.5)}, obj["arr"])

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestDecodeValueHints(t *testing.T) {
	v, err := DecodeValue([]byte(`"2024-01-02"`), TypeDate)
	require.NoError(t, err)
	assert.Equal(t, NewCalendarDate(2024, time.January, 2), v)

	v, err = DecodeValue([]byte(`"2024-01-02"`), TypeString)
	require.NoError(t, err)
	assert.Equal(t, IRString("2024-01-02"), v)

	v, err = DecodeValue([]byte(`7`), TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, IRFloat(7), v)

	// A hint the data does not fit is ignored.
	v, err = DecodeValue([]byte(`"seven"`), TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, IRString("seven"), v)
}

func TestIRFloatMarshalJSON(t *testing.T) {
	b, err := json.Marshal(IRObject{"x": IRFloat(2)})
	require.NoError(t, err)
	assert.Equal(t, `{"x":2.0}`, string(b))
}
