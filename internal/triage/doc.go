// Package triage turns raw chat-completion text into a fixed-shape verdict.
//
// Normalization never fails: malformed, truncated or non-JSON model output
// degrades to a conservative default verdict instead of an error.
package triage
