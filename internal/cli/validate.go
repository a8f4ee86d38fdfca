package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// FileValidation is the validation outcome of one IR file.
type FileValidation struct {
	Path   string   `json:"path"`
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// ValidationReport holds the outcome for every file validated.
type ValidationReport struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

func (r ValidationReport) String() string {
	var b strings.Builder
	for i, f := range r.Files {
		if i > 0 {
			b.WriteByte('\n')
		}
		if f.OK {
			fmt.Fprintf(&b, "✓ %s", f.Path)
			continue
		}
		fmt.Fprintf(&b, "✗ %s", f.Path)
		for _, e := range f.Errors {
			fmt.Fprintf(&b, "\n  %s", e)
		}
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <ir.json>...",
		Short: "Check IR files for structural and semantic errors",
		Long: `Validate serialized IRs: version, schema, primary key, row count,
value types, nullability and key uniqueness. Every error is reported,
not only the first.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid
  2 - Command error (unreadable file, etc.)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	report := ValidationReport{Valid: true, Files: make([]FileValidation, 0, len(paths))}
	for _, path := range paths {
		fv, err := validateFile(cmd, path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read "+path, err)
		}
		f.VerboseLog("validated %s: ok=%t", path, fv.OK)
		report.Files = append(report.Files, fv)
		report.Valid = report.Valid && fv.OK
	}

	if !report.Valid {
		invalid := 0
		for _, fv := range report.Files {
			if !fv.OK {
				invalid++
			}
		}
		return f.Failure(report, string(errs.KindInvalidInput), fmt.Sprintf("%d of %d file(s) invalid", invalid, len(report.Files)))
	}
	return f.Success(report)
}

// validateFile returns an I/O error only when the file cannot be read; a
// file that does not decode is reported as invalid.
func validateFile(cmd *cobra.Command, path string) (FileValidation, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return FileValidation{}, err
	}
	x, err := ir.DecodeIR(data)
	if err != nil {
		return FileValidation{Path: path, Errors: []string{err.Error()}}, nil
	}
	res := ir.ValidateIR(x)
	return FileValidation{Path: path, OK: res.OK, Errors: res.Errors}, nil
}
