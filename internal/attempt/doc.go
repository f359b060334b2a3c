// Package attempt implements the generation attempt lifecycle: reserving
// an in-progress attempt row for a plan (with cap, single-flight and rate
// limit enforcement) and finalizing it into a terminal state together with
// the plan's content, inside a single transaction.
package attempt
