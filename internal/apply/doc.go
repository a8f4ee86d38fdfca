// Package apply executes a Plan against a Target.
//
// Every executable action is translated into one mutation by the same code
// in dry runs and live applies; a dry run checks each mutation against the
// target and a simulated view of earlier actions, but never mutates.
//
// A live apply may first snapshot the records it is about to touch. If the
// snapshot fails, nothing is mutated. Actions are then applied one at a
// time, best effort: a failed action is recorded and the next one runs.
// Manual actions are reported as skipped. Cancellation is honored between
// actions only; a mutation that has started always runs to completion.
package apply
