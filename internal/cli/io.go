package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// readInput reads path, or standard input when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, errs.Wrap(errs.KindIO, "read", err, "stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "read", err, "%s", path)
	}
	return data, nil
}

func readIR(cmd *cobra.Command, path string) (*ir.IR, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return ir.DecodeIR(data)
}

func readDiff(cmd *cobra.Command, path string) (*ir.Diff, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return ir.DecodeDiff(data)
}

func readPlan(cmd *cobra.Command, path string) (*ir.Plan, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	return ir.DecodePlan(data)
}

// writeEntity writes v to path in canonical JSON.
func writeEntity(path string, v any) error {
	data, err := ir.CanonicalJSON(v)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "write", err, "encode %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errs.Wrap(errs.KindIO, "write", err, "%s", path)
	}
	return nil
}

// emit outputs an entity. With an output path the entity goes to the file
// and only summary is printed; otherwise the entity itself is the output,
// bare in text mode and inside the envelope in JSON mode.
func emit(f *OutputFormatter, output string, v any, summary any) error {
	if output != "" {
		if err := writeEntity(output, v); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		return f.Success(summary)
	}
	data, err := ir.CanonicalJSON(v)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode output", err)
	}
	if f.Format == "json" {
		return f.Success(json.RawMessage(data))
	}
	_, err = f.Writer.Write(append(data, '\n'))
	return err
}
