package contract

import (
	"strings"

	"github.com/form3tech-oss/pact-mock-service/internal/app/differ"
	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
)

type RequestOptions struct {
	AllowUnexpectedKeysInBody bool `json:"allow_unexpected_keys_in_body,omitempty"`
}

// RequestExpectation describes the requests an interaction accepts.
type RequestExpectation struct {
	Method  string
	Path    string
	Headers Field
	Query   Field
	Body    Field
	Options RequestOptions
}

// NewRequestExpectation returns an expectation for a route with no header, query or body
// expectations.
func NewRequestExpectation(method, path string) RequestExpectation {
	return RequestExpectation{
		Method: normalizeMethod(method),
		Path:   normalizePath(path),
	}
}

func normalizeMethod(method string) string {
	return strings.ToUpper(method)
}

func normalizePath(path string) string {
	return strings.TrimSuffix(path, "/")
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// ShortDescription renders the method and full path, e.g. "GET /users?active=true".
func (r RequestExpectation) ShortDescription() string {
	fp := displayPath(r.Path)
	if r.Query.Specified() {
		if q, ok := r.Query.Matcher().Generate().(string); ok && q != "" {
			fp += "?" + q
		}
	}
	return r.Method + " " + fp
}

// RouteDifference compares only method and path.
func (r RequestExpectation) RouteDifference(actual ActualRequest) differ.Differences {
	var diffs differ.Differences
	diffs = append(diffs, differ.DiffAt(differ.Path{"method"},
		matchers.Literal{Value: normalizeMethod(r.Method)}, normalizeMethod(actual.Method), differ.Options{})...)
	diffs = append(diffs, differ.DiffAt(differ.Path{"path"},
		matchers.Literal{Value: normalizePath(r.Path)}, normalizePath(actual.Path), differ.Options{})...)
	return diffs
}

func (r RequestExpectation) MatchesRoute(actual ActualRequest) bool {
	return r.RouteDifference(actual).Empty()
}

// Difference compares the route and every specified field of the expectation.
func (r RequestExpectation) Difference(actual ActualRequest) differ.Differences {
	diffs := r.RouteDifference(actual)

	if r.Query.Specified() {
		diffs = append(diffs, r.queryDifference(actual)...)
	}
	if r.Headers.Specified() {
		diffs = append(diffs, headersDifference(r.Headers.Matcher(), actual.Headers)...)
	}
	if r.Body.Specified() {
		diffs = append(diffs, differ.DiffAt(differ.Path{"body"}, r.Body.Matcher(), actual.Body,
			differ.Options{AllowUnexpectedKeys: r.Options.AllowUnexpectedKeysInBody})...)
	}
	return diffs
}

func (r RequestExpectation) Matches(actual ActualRequest) bool {
	return r.Difference(actual).Empty()
}

func (r RequestExpectation) queryDifference(actual ActualRequest) differ.Differences {
	expected := r.Query.Matcher()
	if _, structured := expected.(matchers.Object); structured {
		return differ.DiffAt(differ.Path{"query"}, expected, ParseQuery(actual.Query), differ.Options{})
	}
	return differ.DiffAt(differ.Path{"query"}, expected, actual.Query, differ.Options{})
}

// headersDifference compares expected headers by case-insensitive name. Headers the
// expectation does not mention are ignored.
func headersDifference(expected matchers.Matcher, actual map[string]string) differ.Differences {
	path := differ.Path{"headers"}
	obj, ok := expected.(matchers.Object)
	if !ok {
		return differ.Differences{{
			Path:     path,
			Kind:     differ.TypeMismatch,
			Expected: "headers object",
			Actual:   matchers.Describe(expected),
		}}
	}

	var diffs differ.Differences
	for _, field := range obj.Fields() {
		name := strings.ToLower(field.Key)
		value, present := actual[name]
		if !present {
			diffs = append(diffs, differ.Difference{
				Path:     path.Key(field.Key),
				Kind:     differ.Missing,
				Expected: matchers.Describe(field.Value),
				Actual:   "<header not found>",
			})
			continue
		}
		diffs = append(diffs, differ.DiffAt(path.Key(field.Key), field.Value, value, differ.Options{})...)
	}
	return diffs
}

// ActualRequest is a request received by the mock service, without any matchers.
type ActualRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	// Query is the raw query string.
	Query string `json:"query,omitempty"`
	// Headers are keyed by lower-cased name; repeated headers are joined with ", ".
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the decoded JSON body, the raw text of a non-JSON body, or nil.
	Body interface{} `json:"body,omitempty"`
}

func NewActualRequest(method, path, query string, headers map[string]string, body interface{}) ActualRequest {
	lowered := make(map[string]string, len(headers))
	for k, v := range headers {
		lowered[strings.ToLower(k)] = v
	}
	return ActualRequest{
		Method:  normalizeMethod(method),
		Path:    normalizePath(path),
		Query:   query,
		Headers: lowered,
		Body:    body,
	}
}

func (a ActualRequest) MethodAndPath() string {
	fp := displayPath(a.Path)
	if a.Query != "" {
		fp += "?" + a.Query
	}
	return a.Method + " " + fp
}
