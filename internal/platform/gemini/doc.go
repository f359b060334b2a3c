// Package gemini implements the generation.Generator interface using
// Google's Gemini API. It handles prompt construction from sanitized plan
// input, response parsing into plan outlines, and normalization of API
// failures into errors the orchestration layer can classify.
package gemini
