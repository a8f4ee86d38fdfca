package harness

import "github.com/roach88/audd/internal/engine"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the pipeline output. Nil when the run failed with an
	// expected error.
	Report *engine.Report `json:"report,omitempty"`

	// ErrorKind is the classified pipeline error, if any.
	ErrorKind string `json:"error_kind,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
