package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Type is a canonical field type.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeFloat   Type = "float"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeNull    Type = "null"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// ValidTypes defines the allowed canonical types.
var ValidTypes = map[Type]bool{
	TypeString:  true,
	TypeInteger: true,
	TypeFloat:   true,
	TypeBoolean: true,
	TypeDate:    true,
	TypeNull:    true,
	TypeObject:  true,
	TypeArray:   true,
}

// IsNumeric reports whether t is integer or float.
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Compatible reports whether values of types a and b can be compared
// without coercion. Null is compatible with everything and integers
// interoperate with floats.
func Compatible(a, b Type) bool {
	if a == b || a == TypeNull || b == TypeNull {
		return true
	}
	return a.IsNumeric() && b.IsNumeric()
}

// IRValue is a sealed interface representing typed record values.
// Only IRNull, IRString, IRInt, IRFloat, IRBool, IRDate, IRArray and
// IRObject implement it.
type IRValue interface {
	irValue()
	Type() Type
}

// IRNull represents an absent or null value.
type IRNull struct{}

func (IRNull) irValue()   {}
func (IRNull) Type() Type { return TypeNull }

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue()   {}
func (IRString) Type() Type { return TypeString }

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue()   {}
func (IRInt) Type() Type { return TypeInteger }

// IRFloat represents a finite floating point value.
type IRFloat float64

func (IRFloat) irValue()   {}
func (IRFloat) Type() Type { return TypeFloat }

// MarshalJSON emits the shortest round-trip form, always with a fraction or
// exponent so the value decodes back as a float.
func (f IRFloat) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue()   {}
func (IRBool) Type() Type { return TypeBoolean }

// IRDate represents a calendar date or a UTC timestamp.
type IRDate struct {
	t        time.Time
	dateOnly bool
}

func (IRDate) irValue()   {}
func (IRDate) Type() Type { return TypeDate }

// Date layouts accepted by ParseDate, most specific last.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// NewIRDate creates a timestamp value normalized to UTC.
func NewIRDate(t time.Time) IRDate {
	return IRDate{t: t.UTC()}
}

// NewCalendarDate creates a date-only value.
func NewCalendarDate(year int, month time.Month, day int) IRDate {
	return IRDate{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), dateOnly: true}
}

// ParseDate parses an ISO 8601 date ("2006-01-02") or timestamp.
func ParseDate(s string) (IRDate, bool) {
	if len(s) == 10 {
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return IRDate{t: t, dateOnly: true}, true
		}
		return IRDate{}, false
	}
	// Cheap reject before trying layouts.
	if len(s) < 19 || s[4] != '-' || s[7] != '-' {
		return IRDate{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewIRDate(t), true
		}
	}
	return IRDate{}, false
}

// Time returns the underlying UTC time.
func (d IRDate) Time() time.Time { return d.t }

// DateOnly reports whether the value carries no time of day.
func (d IRDate) DateOnly() bool { return d.dateOnly }

// String formats the date as "2006-01-02" or RFC 3339 with nanoseconds.
func (d IRDate) String() string {
	if d.dateOnly {
		return d.t.Format(time.DateOnly)
	}
	return d.t.Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler for IRDate.
func (d IRDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// IRArray represents an array of IRValue elements.
type IRArray []IRValue

func (IRArray) irValue()   {}
func (IRArray) Type() Type { return TypeArray }

// MarshalJSON implements json.Marshaler for IRArray.
func (arr IRArray) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(arr)
}

// IRObject represents a map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue()   {}
func (IRObject) Type() Type { return TypeObject }

// MarshalJSON implements json.Marshaler for IRObject with RFC 8785 key order.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// Get returns the value for key, or IRNull when absent.
func (obj IRObject) Get(key string) IRValue {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return IRNull{}
}

// Clone returns a shallow copy of obj.
func (obj IRObject) Clone() IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which differs for supplementary planes.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// TypeOf returns the canonical type of v; a nil value is null.
func TypeOf(v IRValue) Type {
	if v == nil {
		return TypeNull
	}
	return v.Type()
}

// IsNull reports whether v is nil or IRNull.
func IsNull(v IRValue) bool {
	return TypeOf(v) == TypeNull
}

// Equal reports whether two values are identical in type and content.
func Equal(a, b IRValue) bool {
	if TypeOf(a) != TypeOf(b) {
		return false
	}
	return CompareValues(a, b) == 0
}

// typeRank orders values of different types for deterministic key sorting.
func typeRank(t Type) int {
	switch t {
	case TypeNull:
		return 0
	case TypeBoolean:
		return 1
	case TypeInteger, TypeFloat:
		return 2
	case TypeDate:
		return 3
	case TypeString:
		return 4
	case TypeArray:
		return 5
	default:
		return 6
	}
}

// CompareValues orders two values: null < bool < number < date < string <
// array < object, with natural ordering inside each type. Integers and floats
// compare numerically.
func CompareValues(a, b IRValue) int {
	ta, tb := TypeOf(a), TypeOf(b)
	if ra, rb := typeRank(ta), typeRank(tb); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ta {
	case TypeNull:
		return 0
	case TypeBoolean:
		x, y := bool(a.(IRBool)), bool(b.(IRBool))
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case TypeInteger, TypeFloat:
		if ta == TypeInteger && tb == TypeInteger {
			x, y := int64(a.(IRInt)), int64(b.(IRInt))
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
		x, _ := AsFloat(a)
		y, _ := AsFloat(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		if ta != tb {
			// 1 and 1.0 are distinct values; integers sort first.
			if ta == TypeInteger {
				return -1
			}
			return 1
		}
		return 0
	case TypeDate:
		x, y := a.(IRDate), b.(IRDate)
		if c := x.t.Compare(y.t); c != 0 {
			return c
		}
		switch {
		case x.dateOnly == y.dateOnly:
			return 0
		case x.dateOnly:
			return -1
		}
		return 1
	case TypeString:
		return strings.Compare(string(a.(IRString)), string(b.(IRString)))
	default:
		// Arrays and objects order by canonical encoding.
		x, _ := MarshalCanonical(a)
		y, _ := MarshalCanonical(b)
		return bytes.Compare(x, y)
	}
}

// AsFloat returns the numeric value of an IRInt or IRFloat.
func AsFloat(v IRValue) (float64, bool) {
	switch n := v.(type) {
	case IRInt:
		return float64(n), true
	case IRFloat:
		return float64(n), true
	}
	return 0, false
}

// formatFloat renders a finite float in shortest round-trip form, forcing a
// fraction when the result would otherwise read as an integer.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// FromGo converts a decoded Go value (as produced by encoding/json with
// UseNumber, or by a SQL driver) into an IRValue without type hints.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case []byte:
		return IRString(string(val)), nil
	case json.Number:
		return numberValue(val)
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case float32:
		return floatValue(float64(val))
	case float64:
		return floatValue(val)
	case time.Time:
		return NewIRDate(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func floatValue(f float64) (IRValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return IRFloat(f), nil
}

// numberValue keeps integral literals as IRInt and everything else as IRFloat.
func numberValue(n json.Number) (IRValue, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return IRInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return floatValue(f)
}

// DecodeValue decodes a JSON value into an IRValue. The hint steers values
// whose JSON form is ambiguous: dates travel as strings and whole floats may
// have lost their fraction. A hint the data does not fit is ignored.
func DecodeValue(data []byte, hint Type) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	v, err := FromGo(raw)
	if err != nil {
		return nil, err
	}
	return ApplyHint(v, hint), nil
}

// ApplyHint re-types v toward hint when the conversion is lossless.
func ApplyHint(v IRValue, hint Type) IRValue {
	switch hint {
	case TypeDate:
		if s, ok := v.(IRString); ok {
			if d, ok := ParseDate(string(s)); ok {
				return d
			}
		}
	case TypeFloat:
		if i, ok := v.(IRInt); ok {
			return IRFloat(float64(i))
		}
	}
	return v
}

// decodeObject decodes a JSON object, hinting each member by the given type map.
func decodeObject(data []byte, hints map[string]Type) (IRObject, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	obj := make(IRObject, len(raw))
	for k, v := range raw {
		val, err := DecodeValue(v, hints[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = val
	}
	return obj, nil
}

// UnmarshalJSON implements json.Unmarshaler for IRObject without hints.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	out, err := decodeObject(data, nil)
	if err != nil {
		return err
	}
	*obj = out
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray without hints.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := DecodeValue(data, TypeArray)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected JSON array, got %s", TypeOf(v))
	}
	*arr = a
	return nil
}
