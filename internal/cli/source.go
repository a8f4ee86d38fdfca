package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/source"
)

// SourceFlags select a source for the build command: either a descriptor
// file, or a location whose kind is given or inferred from its extension.
type SourceFlags struct {
	File      string
	Kind      string
	Table     string
	Query     string
	Encoding  string
	Delimiter string
	NoHeader  bool
}

func (sf *SourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sf.File, "source", "s", "", "source descriptor file (yaml)")
	cmd.Flags().StringVar(&sf.Kind, "kind", "", "source kind (file-json|file-csv|db-sqlite); inferred from the extension when empty")
	cmd.Flags().StringVar(&sf.Table, "table", "", "table to read (database sources)")
	cmd.Flags().StringVar(&sf.Query, "query", "", "query to read (database sources)")
	cmd.Flags().StringVar(&sf.Encoding, "encoding", "", "CSV charset (IANA name, default UTF-8)")
	cmd.Flags().StringVar(&sf.Delimiter, "delimiter", "", "CSV delimiter (default ,)")
	cmd.Flags().BoolVar(&sf.NoHeader, "no-header", false, "CSV has no header row")
}

// Descriptor resolves the flags and optional location argument.
func (sf *SourceFlags) Descriptor(location string) (source.Descriptor, error) {
	if sf.File != "" {
		if location != "" {
			return source.Descriptor{}, errs.InvalidInput("source", "--source and a location argument are mutually exclusive")
		}
		return LoadDescriptor(sf.File)
	}
	if location == "" {
		return source.Descriptor{}, errs.InvalidInput("source", "a location or --source is required")
	}

	kind := source.Kind(sf.Kind)
	if kind == "" {
		var err error
		if kind, err = inferKind(location); err != nil {
			return source.Descriptor{}, err
		}
	}
	d := source.Descriptor{
		Kind:      kind,
		Location:  location,
		Table:     sf.Table,
		Query:     sf.Query,
		Encoding:  sf.Encoding,
		Delimiter: sf.Delimiter,
		NoHeader:  sf.NoHeader,
	}
	if err := d.Validate(); err != nil {
		return source.Descriptor{}, err
	}
	return d, nil
}

// LoadDescriptor reads a YAML source descriptor. ${VAR} references are
// expanded from the environment, so passwords need not live in the file.
func LoadDescriptor(path string) (source.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return source.Descriptor{}, errs.Wrap(errs.KindIO, "source", err, "read %s", path)
	}
	var d source.Descriptor
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return source.Descriptor{}, errs.Wrap(errs.KindParse, "source", err, "parse %s", path)
	}
	if err := d.Validate(); err != nil {
		return source.Descriptor{}, err
	}
	return d, nil
}

func inferKind(location string) (source.Kind, error) {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".csv":
		return source.KindFileCSV, nil
	case ".json":
		return source.KindFileJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return source.KindSQLite, nil
	}
	return "", errs.New(errs.KindUnsupportedFormat, "source", "cannot infer source kind of %q; use --kind", location)
}
