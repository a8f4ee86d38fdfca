package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainIR   = "audd/ir/v1"
	DomainDiff = "audd/diff/v1"
	DomainPlan = "audd/plan/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash identifies an IR by its content. The creation timestamp is
// excluded, so two builds of identical source content hash equal.
func ContentHash(x *IR) (string, error) {
	fields := make([]any, len(x.Schema.Fields))
	for i, f := range x.Schema.Fields {
		fields[i] = map[string]any{
			"name":     f.Name,
			"type":     string(f.Type),
			"nullable": f.Nullable,
		}
	}
	data := make([]any, len(x.Data))
	for i, rec := range x.Data {
		data[i] = rec
	}

	obj := map[string]any{
		"version": x.Version,
		"source": map[string]any{
			"type":     x.Source.Type,
			"format":   x.Source.Format,
			"location": x.Source.Location,
			"table":    x.Source.Table,
			"query":    x.Source.Query,
		},
		"schema": map[string]any{
			"fields":        fields,
			"primary_key":   x.Schema.PrimaryKey,
			"synthetic_key": x.Schema.SyntheticKey,
			"declared":      x.Schema.Declared,
		},
		"data":           data,
		"row_count":      int64(x.Metadata.RowCount),
		"low_confidence": x.Metadata.LowConfidence,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainIR, canonical), nil
}

// PlanID identifies a Plan by its content; the store's mutation log groups
// entries by it.
func PlanID(p *Plan) (string, error) {
	data, err := canonicalJSON(p)
	if err != nil {
		return "", fmt.Errorf("PlanID: %w", err)
	}
	return hashWithDomain(DomainPlan, data), nil
}

// DiffID identifies a Diff by its content.
func DiffID(d *Diff) (string, error) {
	data, err := canonicalJSON(d)
	if err != nil {
		return "", fmt.Errorf("DiffID: %w", err)
	}
	return hashWithDomain(DomainDiff, data), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(x *IR) string {
	h, err := ContentHash(x)
	if err != nil {
		panic(err)
	}
	return h
}
