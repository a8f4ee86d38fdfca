package engine

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/source"
)

// Job is one reconciliation request.
type Job struct {
	Name string `yaml:"name" json:"name"`

	// A is the baseline, B the candidate.
	A source.Descriptor `yaml:"a" json:"a"`
	B source.Descriptor `yaml:"b" json:"b"`

	// Target names the store dataset the plan is applied to. A missing
	// dataset is seeded from A. Empty applies to an in-memory copy of A.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// PrimaryKey overrides key detection for both builds.
	PrimaryKey []string `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
}

// Validate checks the job without touching any source.
func (j Job) Validate() error {
	if err := j.A.Validate(); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "job", err, "source a")
	}
	if err := j.B.Validate(); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "job", err, "source b")
	}
	return nil
}

// LoadJob reads a YAML job file. ${VAR} references are expanded from the
// environment first, so credentials need not live in the file.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, errs.Wrap(errs.KindIO, "job", err, "read %s", path)
	}
	return ParseJob([]byte(os.ExpandEnv(string(data))))
}

// ParseJob decodes a YAML job. Unknown keys are rejected.
func ParseJob(data []byte) (Job, error) {
	var j Job
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		return Job{}, errs.Wrap(errs.KindParse, "job", err, "decode")
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
