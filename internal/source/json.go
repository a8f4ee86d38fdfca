package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/audd/internal/errs"
)

// Member names recognised as the record array of a wrapper object.
var wrapperMembers = []string{"data", "records", "rows", "items"}

type jsonNormalizer struct{}

func (jsonNormalizer) Read(ctx context.Context, d Descriptor) (*RawSet, error) {
	const op = "source.json"

	f, err := os.Open(d.Location)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, op, err, "open %s", d.Location)
	}
	defer f.Close()

	rows, err := DecodeJSONRecords(ctx, f)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, op, err, "decode %s", d.Location)
	}
	return &RawSet{Rows: rows}, nil
}

// DecodeJSONRecords reads a JSON document of records: a top-level array of
// objects, an object wrapping such an array, or a single object. Field order
// is preserved and numbers are kept as json.Number.
func DecodeJSONRecords(ctx context.Context, r io.Reader) ([]RawRow, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	top, err := readJSONValue(dec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.Parse("source.json", "empty document")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errs.Parse("source.json", "unexpected data after top-level value")
	}

	var items []any
	switch v := top.(type) {
	case []any:
		items = v
	case RawRow:
		if arr, ok := wrappedArray(v); ok {
			items = arr
		} else {
			items = []any{v}
		}
	default:
		return nil, errs.Parse("source.json", "top-level value must be an array or object, got %T", top)
	}

	rows := make([]RawRow, len(items))
	for i, item := range items {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.FromContext("source.json", err)
			}
		}
		row, ok := item.(RawRow)
		if !ok {
			return nil, errs.Parse("source.json", "record %d is not an object", i+1)
		}
		for j := range row {
			row[j].Value = plainJSON(row[j].Value)
		}
		rows[i] = row
	}
	return rows, nil
}

// wrappedArray finds the record array of a wrapper object: a well-known
// member name, or the object's only array member.
func wrappedArray(obj RawRow) ([]any, bool) {
	for _, name := range wrapperMembers {
		if v, ok := obj.Get(name); ok {
			if arr, ok := v.([]any); ok {
				return arr, true
			}
		}
	}
	var found []any
	n := 0
	for _, c := range obj {
		if arr, ok := c.Value.([]any); ok {
			found = arr
			n++
		}
	}
	return found, n == 1 && len(obj) == 1
}

// readJSONValue reads one value, returning objects as ordered RawRows.
func readJSONValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			var row RawRow
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, truncated(err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", keyTok)
				}
				val, err := readJSONValue(dec)
				if err != nil {
					return nil, truncated(err)
				}
				row.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, truncated(err)
			}
			return row, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := readJSONValue(dec)
				if err != nil {
					return nil, truncated(err)
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, truncated(err)
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

// truncated reports end of input inside a value as unexpected.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// plainJSON converts nested ordered objects to maps; order below the record
// level is irrelevant once values are canonical.
func plainJSON(v any) any {
	switch val := v.(type) {
	case RawRow:
		m := make(map[string]any, len(val))
		for _, c := range val {
			m[c.Name] = plainJSON(c.Value)
		}
		return m
	case []any:
		for i := range val {
			val[i] = plainJSON(val[i])
		}
		return val
	default:
		return v
	}
}
