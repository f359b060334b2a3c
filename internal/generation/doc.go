// Package generation defines the boundary between the orchestration core
// and the AI content provider: the Generator interface, its input/output
// shapes, and the normalization of heterogeneous provider errors into the
// attempt failure taxonomy.
package generation
