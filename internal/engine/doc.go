// Package engine runs a reconciliation job end to end.
//
// A job names a baseline source (A), a candidate source (B) and optionally a
// dataset in the store to apply to. Reconcile builds both IRs concurrently,
// compares them, proposes a plan and applies it:
//
//	build A ─┐
//	         ├─> compare ─> propose ─> apply ─> log
//	build B ─┘
//
// Every stage either returns a whole entity or one classified error; the
// first error stops the run and cancels the sibling build. A partially
// applied plan is not an error: it is reported in Report.Result and recorded
// in the store's apply log.
//
// Without a target dataset the plan is applied to an in-memory copy of A, so
// Report.Final shows what A would become.
package engine
