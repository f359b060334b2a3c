// Package task implements the durable priority job queue: deduplicated
// enqueue, priority-ordered dequeue, completion and bounded-retry failure
// transitions, synchronous inline draining, and a background polling
// runner.
package task
