package contract

import "fmt"

// ConfigurationError reports a contract that cannot be persisted because it is not fully
// described, e.g. a missing consumer or provider name.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ParseError reports a malformed contract document. Path locates the offending value.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse contract at %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(path, format string, a ...interface{}) *ParseError {
	return &ParseError{Path: path, Err: fmt.Errorf(format, a...)}
}
