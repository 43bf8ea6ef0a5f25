package differ

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a Difference.
type Kind string

const (
	// Missing is an expected key absent from the actual value
	Missing Kind = "missing"
	// Unexpected is an actual key the expectation does not allow
	Unexpected Kind = "unexpected"
	// TypeMismatch is an actual value of a different JSON kind
	TypeMismatch Kind = "type_mismatch"
	// ValueMismatch is an actual value unequal to a literal, or an array of the wrong length
	ValueMismatch Kind = "value_mismatch"
	// PatternMismatch is an actual value not matched by a term's pattern
	PatternMismatch Kind = "pattern_mismatch"
)

// Path locates a value: each element is a string key or an int index.
type Path []interface{}

func (p Path) Key(key string) Path {
	return append(append(Path(nil), p...), key)
}

func (p Path) Index(i int) Path {
	return append(append(Path(nil), p...), i)
}

var simpleKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// String renders the path as a JSONPath expression, e.g. $.body.users[0]["content-type"].
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, element := range p {
		switch e := element.(type) {
		case int:
			sb.WriteString("[" + strconv.Itoa(e) + "]")
		case string:
			if simpleKey.MatchString(e) {
				sb.WriteString("." + e)
			} else {
				sb.WriteString("[" + strconv.Quote(e) + "]")
			}
		default:
			sb.WriteString(fmt.Sprintf("[%v]", e))
		}
	}
	return sb.String()
}

func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Difference is one path-qualified disagreement between an expectation and an actual value.
type Difference struct {
	Path     Path   `json:"path"`
	Kind     Kind   `json:"kind"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (d Difference) String() string {
	return fmt.Sprintf("%s [%s] expected %s but got %s", d.Path, d.Kind, d.Expected, d.Actual)
}

type Differences []Difference

func (d Differences) Empty() bool {
	return len(d) == 0
}

// At returns the differences reported at exactly the given path.
func (d Differences) At(path Path) Differences {
	want := path.String()
	var out Differences
	for _, diff := range d {
		if diff.Path.String() == want {
			out = append(out, diff)
		}
	}
	return out
}

func (d Differences) String() string {
	lines := make([]string, len(d))
	for i, diff := range d {
		lines[i] = diff.String()
	}
	return strings.Join(lines, "\n")
}
