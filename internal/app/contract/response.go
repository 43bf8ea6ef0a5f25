package contract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/form3tech-oss/pact-mock-service/internal/app/differ"
	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
	"github.com/pkg/errors"
)

// ResponseExpectation describes the response served for an interaction, and the response a
// provider must produce when the interaction is verified.
type ResponseExpectation struct {
	Status  int
	Headers map[string]matchers.Matcher
	Body    Field
}

// GeneratedHeaders returns the header values to serve.
func (r ResponseExpectation) GeneratedHeaders() map[string]string {
	out := make(map[string]string, len(r.Headers))
	for name, m := range r.Headers {
		switch v := m.Generate().(type) {
		case string:
			out[name] = v
		default:
			out[name] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// GeneratedBody renders the body to serve. A string body is returned byte for byte with raw
// set; any other body is JSON encoded. An unspecified or null body renders as nil.
func (r ResponseExpectation) GeneratedBody() (content []byte, raw bool, err error) {
	if !r.Body.Specified() {
		return nil, false, nil
	}
	generated := r.Body.Matcher().Generate()
	switch v := generated.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []byte(v), true, nil
	}
	content, err = json.Marshal(generated)
	if err != nil {
		return nil, false, errors.Wrap(err, "unable to render response body")
	}
	return content, false, nil
}

// ActualResponse is a response received from a provider during verification.
type ActualResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

// Difference compares a provider response against the expectation. Header names compare
// case-insensitively and unexpected keys in the body are allowed.
func (r ResponseExpectation) Difference(actual ActualResponse) differ.Differences {
	var diffs differ.Differences
	diffs = append(diffs, differ.DiffAt(differ.Path{"status"},
		matchers.Literal{Value: float64(r.Status)}, float64(actual.Status), differ.Options{})...)

	if len(r.Headers) > 0 {
		fields := make([]matchers.Field, 0, len(r.Headers))
		for name, m := range r.Headers {
			fields = append(fields, matchers.Field{Key: name, Value: m})
		}
		lowered := make(map[string]string, len(actual.Headers))
		for k, v := range actual.Headers {
			lowered[strings.ToLower(k)] = v
		}
		diffs = append(diffs, headersDifference(matchers.NewObject(fields...), lowered)...)
	}

	if r.Body.Specified() {
		diffs = append(diffs, differ.DiffAt(differ.Path{"body"}, r.Body.Matcher(), actual.Body,
			differ.Options{AllowUnexpectedKeys: true})...)
	}
	return diffs
}
