package parser

import "fmt"

// ParseError reports a field or page that could not be extracted. It is
// contained at card granularity and never aborts a page.
type ParseError struct {
	Field string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a record that misses a required field. The record is
// dropped and the run continues.
type ValidationError struct {
	Field  string
	Record string
}

func (e *ValidationError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("record missing %s", e.Field)
	}
	return fmt.Sprintf("record %s missing %s", e.Record, e.Field)
}
