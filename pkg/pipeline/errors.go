// Package pipeline runs the enrichment workflow: ontology and instance
// loading, closure expansion, rule application with tests, and writing the
// resulting graph.
package pipeline

import "errors"

// Fatal error classes. Returned errors wrap one of these and can be matched
// with errors.Is.
var (
	ErrLoad         = errors.New("load failed")
	ErrClosure      = errors.New("closure expansion failed")
	ErrUpdate       = errors.New("update failed")
	ErrMissingRules = errors.New("missing rules")
	ErrWrite        = errors.New("write failed")
)
