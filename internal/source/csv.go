package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/roach88/audd/internal/errs"
)

type csvNormalizer struct{}

func (csvNormalizer) Read(ctx context.Context, d Descriptor) (*RawSet, error) {
	const op = "source.csv"

	f, err := os.Open(d.Location)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, op, err, "open %s", d.Location)
	}
	defer f.Close()

	set, err := DecodeCSV(ctx, f, CSVOptions{Encoding: d.Encoding, Delimiter: d.Delimiter, NoHeader: d.NoHeader})
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, op, err, "decode %s", d.Location)
	}
	return set, nil
}

// CSVOptions configure DecodeCSV.
type CSVOptions struct {
	Encoding  string // IANA charset name; empty means UTF-8
	Delimiter string // single character; empty means ','
	NoHeader  bool   // columns are named col1..colN
}

// lookupEncoding resolves an IANA charset name. UTF-8 (the default) strips a
// leading byte order mark.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, errs.InvalidInput("source.validate", "unsupported encoding %q", name)
	}
	return enc, nil
}

// DecodeCSV reads delimited text into a textual RawSet. Every record must
// have as many cells as the header (or the first record without a header).
func DecodeCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*RawSet, error) {
	enc, err := lookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	if opts.Delimiter != "" {
		cr.Comma, _ = utf8.DecodeRuneInString(opts.Delimiter)
	}

	set := &RawSet{Textual: true}
	var names []string
	line := 0
	for {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.FromContext("source.csv", err)
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, "source.csv", err, "read record")
		}
		line++

		if names == nil {
			if opts.NoHeader {
				names = make([]string, len(record))
				for i := range record {
					names[i] = fmt.Sprintf("col%d", i+1)
				}
			} else {
				names, err = headerNames(record)
				if err != nil {
					return nil, err
				}
				set.Columns = columnsOf(names)
				continue
			}
			set.Columns = columnsOf(names)
		}

		row := make(RawRow, len(record))
		for i, cell := range record {
			row[i] = Cell{Name: names[i], Value: cell}
		}
		set.Rows = append(set.Rows, row)
	}
	return set, nil
}

func headerNames(record []string) ([]string, error) {
	names := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, h := range record {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("col%d", i+1)
		}
		if seen[name] {
			return nil, errs.Parse("source.csv", "duplicate column %q in header", name)
		}
		seen[name] = true
		names[i] = name
	}
	return names, nil
}

func columnsOf(names []string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return cols
}
