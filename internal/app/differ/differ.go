// Package differ compares expectation trees against actual JSON values.
//
// Diff is pure: it walks the expected matcher tree alongside the actual value and returns
// every disagreement, qualified by the path at which it was found. An empty result means the
// actual value satisfies the expectation.
package differ

import (
	"fmt"
	"sort"

	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
)

const (
	keyNotFound    = "<key not found>"
	keyNotExpected = "<key not expected>"
)

type Options struct {
	// AllowUnexpectedKeys ignores object keys present in the actual value but not expected.
	AllowUnexpectedKeys bool
}

func Diff(expected matchers.Matcher, actual interface{}, opts Options) Differences {
	return DiffAt(nil, expected, actual, opts)
}

// DiffAt is Diff with every reported path prefixed by path.
func DiffAt(path Path, expected matchers.Matcher, actual interface{}, opts Options) Differences {
	switch e := expected.(type) {
	case nil:
		return nil
	case matchers.Literal:
		return diffLiteral(path, e, actual, opts)
	case matchers.Term:
		return diffTerm(path, e, actual)
	case matchers.Like:
		return diffLike(path, e, actual)
	case matchers.Object:
		return diffObject(path, e, actual, opts)
	case matchers.Array:
		return diffArray(path, e, actual, opts)
	}
	return Differences{{
		Path:     path,
		Kind:     ValueMismatch,
		Expected: fmt.Sprintf("%T", expected),
		Actual:   matchers.Repr(actual),
	}}
}

func diffLiteral(path Path, expected matchers.Literal, actual interface{}, opts Options) Differences {
	switch expected.Value.(type) {
	case map[string]interface{}, []interface{}:
		return DiffAt(path, matchers.From(expected.Value), actual, opts)
	}
	if equalScalars(expected.Value, actual) {
		return nil
	}
	return Differences{{
		Path:     path,
		Kind:     ValueMismatch,
		Expected: matchers.Repr(expected.Value),
		Actual:   matchers.Repr(actual),
	}}
}

func equalScalars(expected, actual interface{}) bool {
	if en, ok := matchers.ToNumber(expected); ok {
		an, ok := matchers.ToNumber(actual)
		return ok && matchers.NumbersEqual(en, an)
	}
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	}
	return false
}

func diffTerm(path Path, expected matchers.Term, actual interface{}) Differences {
	mismatch := Differences{{
		Path:     path,
		Kind:     PatternMismatch,
		Expected: matchers.Describe(expected),
		Actual:   matchers.Repr(actual),
	}}

	s, ok := actual.(string)
	if !ok {
		return mismatch
	}
	re, err := expected.Regexp()
	if err != nil {
		mismatch[0].Expected = err.Error()
		return mismatch
	}
	if !re.MatchString(s) {
		return mismatch
	}
	return nil
}

func diffLike(path Path, expected matchers.Like, actual interface{}) Differences {
	if matchers.KindOf(expected.Example) == matchers.KindOf(actual) {
		return nil
	}
	return Differences{{
		Path:     path,
		Kind:     TypeMismatch,
		Expected: matchers.Describe(expected),
		Actual:   fmt.Sprintf("%s %s", matchers.KindOf(actual), matchers.Repr(actual)),
	}}
}

func diffObject(path Path, expected matchers.Object, actual interface{}, opts Options) Differences {
	obj, ok := actual.(map[string]interface{})
	if !ok {
		return Differences{{
			Path:     path,
			Kind:     TypeMismatch,
			Expected: "object " + matchers.Describe(expected),
			Actual:   fmt.Sprintf("%s %s", matchers.KindOf(actual), matchers.Repr(actual)),
		}}
	}

	var diffs Differences
	for _, field := range expected.Fields() {
		value, present := obj[field.Key]
		if !present {
			diffs = append(diffs, Difference{
				Path:     path.Key(field.Key),
				Kind:     Missing,
				Expected: matchers.Describe(field.Value),
				Actual:   keyNotFound,
			})
			continue
		}
		diffs = append(diffs, DiffAt(path.Key(field.Key), field.Value, value, opts)...)
	}

	if opts.AllowUnexpectedKeys {
		return diffs
	}

	unexpected := make([]string, 0)
	for k := range obj {
		if _, expectedKey := expected.Get(k); !expectedKey {
			unexpected = append(unexpected, k)
		}
	}
	sort.Strings(unexpected)
	for _, k := range unexpected {
		diffs = append(diffs, Difference{
			Path:     path.Key(k),
			Kind:     Unexpected,
			Expected: keyNotExpected,
			Actual:   matchers.Repr(obj[k]),
		})
	}
	return diffs
}

func diffArray(path Path, expected matchers.Array, actual interface{}, opts Options) Differences {
	arr, ok := actual.([]interface{})
	if !ok {
		return Differences{{
			Path:     path,
			Kind:     TypeMismatch,
			Expected: "array " + matchers.Describe(expected),
			Actual:   fmt.Sprintf("%s %s", matchers.KindOf(actual), matchers.Repr(actual)),
		}}
	}

	var diffs Differences
	if len(expected) != len(arr) {
		diffs = append(diffs, Difference{
			Path:     path,
			Kind:     ValueMismatch,
			Expected: fmt.Sprintf("array of length %d", len(expected)),
			Actual:   fmt.Sprintf("array of length %d", len(arr)),
		})
	}

	n := len(expected)
	if len(arr) < n {
		n = len(arr)
	}
	for i := 0; i < n; i++ {
		diffs = append(diffs, DiffAt(path.Index(i), expected[i], arr[i], opts)...)
	}
	return diffs
}
