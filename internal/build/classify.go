package build

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// cell is a value as read from the source plus its original text, kept so
// a column widened to string reproduces what the source said.
type cell struct {
	val  ir.IRValue
	text string
	raw  bool // text is the source's own spelling
}

// classifyText types a CSV cell: empty is null, then integer, float,
// boolean, date, and string as the fallback.
func classifyText(s string) ir.IRValue {
	t := strings.TrimSpace(s)
	if t == "" {
		return ir.IRNull{}
	}
	if isNumeric(t) && !(leadingZero(t) && !strings.ContainsAny(t, ".eE")) {
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return ir.IRInt(i)
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return ir.IRFloat(f)
		}
	}
	switch strings.ToLower(t) {
	case "true":
		return ir.IRBool(true)
	case "false":
		return ir.IRBool(false)
	}
	if d, ok := ir.ParseDate(t); ok {
		return d
	}
	return ir.IRString(s)
}

// isNumeric reports whether s uses only decimal number characters and has a digit.
func isNumeric(s string) bool {
	digit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r == '+' || r == '-' || r == '.' || r == 'e' || r == 'E':
		default:
			return false
		}
	}
	return digit
}

// leadingZero flags identifiers such as "007" that must stay text.
func leadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}

// toCell converts a raw source value into a typed cell.
func toCell(v any, textual bool) (cell, error) {
	if textual {
		if s, ok := v.(string); ok {
			return cell{val: classifyText(s), text: s, raw: true}, nil
		}
	}
	switch val := v.(type) {
	case string:
		if d, ok := ir.ParseDate(val); ok {
			return cell{val: d, text: val, raw: true}, nil
		}
		return cell{val: ir.IRString(val), text: val, raw: true}, nil
	case json.Number:
		iv, err := ir.FromGo(val)
		if err != nil {
			return cell{}, err
		}
		return cell{val: iv, text: val.String(), raw: true}, nil
	}
	iv, err := ir.FromGo(v)
	if err != nil {
		return cell{}, err
	}
	return cell{val: iv}, nil
}

// render spells a value as text for a string column.
func render(c cell) (string, error) {
	if c.raw {
		return c.text, nil
	}
	switch v := c.val.(type) {
	case ir.IRString:
		return string(v), nil
	case ir.IRInt:
		return strconv.FormatInt(int64(v), 10), nil
	case ir.IRFloat:
		return strconv.FormatFloat(float64(v), 'g', -1, 64), nil
	case ir.IRBool:
		return strconv.FormatBool(bool(v)), nil
	case ir.IRDate:
		return v.String(), nil
	default:
		b, err := ir.MarshalCanonical(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// widen returns the most specific type covering both a and b. An empty
// type means nothing observed yet.
func widen(a, b ir.Type) ir.Type {
	switch {
	case a == "" || a == ir.TypeNull:
		return b
	case b == ir.TypeNull || a == b:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return ir.TypeFloat
	default:
		return ir.TypeString
	}
}

// coerce converts a cell to the target type or explains why it cannot.
func coerce(c cell, target ir.Type) (ir.IRValue, error) {
	v := c.val
	vt := ir.TypeOf(v)
	if vt == ir.TypeNull {
		return ir.IRNull{}, nil
	}
	if vt == target {
		return v, nil
	}

	switch target {
	case ir.TypeString:
		s, err := render(c)
		if err != nil {
			return nil, err
		}
		return ir.IRString(s), nil

	case ir.TypeFloat:
		switch val := v.(type) {
		case ir.IRInt:
			return ir.IRFloat(float64(val)), nil
		case ir.IRString:
			if f, ok := classifyText(string(val)).(ir.IRFloat); ok {
				return f, nil
			}
			if i, ok := classifyText(string(val)).(ir.IRInt); ok {
				return ir.IRFloat(float64(i)), nil
			}
		}

	case ir.TypeInteger:
		switch val := v.(type) {
		case ir.IRFloat:
			f := float64(val)
			if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
				return ir.IRInt(int64(f)), nil
			}
		case ir.IRString:
			if i, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64); err == nil {
				return ir.IRInt(i), nil
			}
		case ir.IRBool:
			if val {
				return ir.IRInt(1), nil
			}
			return ir.IRInt(0), nil
		}

	case ir.TypeBoolean:
		switch val := v.(type) {
		case ir.IRInt:
			if val == 0 || val == 1 {
				return ir.IRBool(val == 1), nil
			}
		case ir.IRString:
			switch strings.ToLower(strings.TrimSpace(string(val))) {
			case "true", "1", "t", "yes":
				return ir.IRBool(true), nil
			case "false", "0", "f", "no":
				return ir.IRBool(false), nil
			}
		}

	case ir.TypeDate:
		if s, ok := v.(ir.IRString); ok {
			if d, ok := ir.ParseDate(strings.TrimSpace(string(s))); ok {
				return d, nil
			}
		}
	}

	return nil, fmt.Errorf("cannot convert %s value %s to %s", vt, describe(v), target)
}

func describe(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(b) > 40 {
		return string(b[:37]) + "..."
	}
	return string(b)
}

func parseFailure(row int, field string, err error) error {
	return errs.Wrap(errs.KindParse, "build", err, "row %d field %q", row, field)
}
