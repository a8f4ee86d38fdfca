package ir

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/roach88/audd/internal/errs"
)

// Version constants for the serialized entities and the engine.
const (
	// IRVersion is the version stamped on IR, Diff, Plan and ApplyResult.
	IRVersion = "1.0"

	// SupportedMajor is the only major version decoders accept.
	SupportedMajor = 1

	// EngineVersion is the audd engine version.
	EngineVersion = "0.1.0"

	// ComparatorVersion identifies the similarity functions used by the diff
	// engine. Bumped whenever a comparator changes, since resolution outcomes
	// depend on it.
	ComparatorVersion = "1"
)

// CheckVersion rejects a missing, malformed or unknown-major version string.
func CheckVersion(entity, version string) error {
	if version == "" {
		return errs.InvalidInput("decode", "%s: missing version", entity)
	}
	majorStr, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return errs.InvalidInput("decode", "%s: malformed version %q", entity, version)
	}
	if major != SupportedMajor {
		return errs.InvalidInput("decode", "%s: unsupported major version %d (want %d)", entity, major, SupportedMajor)
	}
	return nil
}

// peekVersion reads only the version member so the version can be checked
// before the full schema is trusted.
func peekVersion(entity string, data []byte) error {
	var head struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return &errs.Error{Kind: errs.KindInvalidInput, Op: "decode", Message: entity + " is not valid JSON", Err: err}
	}
	return CheckVersion(entity, head.Version)
}

// DecodeIR parses a serialized IR, rejecting unknown major versions.
func DecodeIR(data []byte) (*IR, error) {
	if err := peekVersion("ir", data); err != nil {
		return nil, err
	}
	var out IR
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &errs.Error{Kind: errs.KindInvalidInput, Op: "decode", Message: "malformed ir", Err: err}
	}
	return &out, nil
}

// DecodeDiff parses a serialized Diff, rejecting unknown major versions.
func DecodeDiff(data []byte) (*Diff, error) {
	if err := peekVersion("diff", data); err != nil {
		return nil, err
	}
	var out Diff
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &errs.Error{Kind: errs.KindInvalidInput, Op: "decode", Message: "malformed diff", Err: err}
	}
	return &out, nil
}

// DecodePlan parses a serialized Plan, rejecting unknown major versions.
func DecodePlan(data []byte) (*Plan, error) {
	if err := peekVersion("plan", data); err != nil {
		return nil, err
	}
	var out Plan
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &errs.Error{Kind: errs.KindInvalidInput, Op: "decode", Message: "malformed plan", Err: err}
	}
	return &out, nil
}

// DecodeApplyResult parses a serialized ApplyResult, rejecting unknown major versions.
func DecodeApplyResult(data []byte) (*ApplyResult, error) {
	if err := peekVersion("apply result", data); err != nil {
		return nil, err
	}
	var out ApplyResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &errs.Error{Kind: errs.KindInvalidInput, Op: "decode", Message: "malformed apply result", Err: err}
	}
	return &out, nil
}
