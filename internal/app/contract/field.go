package contract

import "github.com/form3tech-oss/pact-mock-service/internal/app/matchers"

// Field is an optional part of a request expectation. A field that is not specified is never
// compared; a specified field is compared even when its value is empty or null.
type Field struct {
	matcher   matchers.Matcher
	specified bool
}

func NotSpecified() Field {
	return Field{}
}

// Expect specifies a field. Plain Go values are converted with matchers.From.
func Expect(v interface{}) Field {
	return Field{matcher: matchers.From(v), specified: true}
}

func (f Field) Specified() bool {
	return f.specified
}

// Matcher returns the expectation, nil when the field is not specified.
func (f Field) Matcher() matchers.Matcher {
	return f.matcher
}

func (f Field) String() string {
	if !f.specified {
		return "<No expectation>"
	}
	return matchers.Describe(f.matcher)
}
