package config

import "fmt"

// ParseError reports a configuration that cannot be read.
type ParseError struct {
	// Source names the file or the section being parsed, when known.
	Source string

	// Record is the 1-based position of the legacy record, or 0.
	Record int

	Reason string
}

func (e *ParseError) Error() string {
	switch {
	case e.Source != "" && e.Record > 0:
		return fmt.Sprintf("%s: record %d: %s", e.Source, e.Record, e.Reason)
	case e.Record > 0:
		return fmt.Sprintf("record %d: %s", e.Record, e.Reason)
	case e.Source != "":
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	default:
		return "invalid configuration: " + e.Reason
	}
}
