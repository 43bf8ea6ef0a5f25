// Package matchers holds the expectation values embedded in interaction requests and responses.
//
// A Matcher is a closed set of node types: Literal, Term, Like, Object and Array. Plain JSON
// values become Literal leaves inside Object and Array containers; Term and Like stand in for
// values that only need to satisfy a pattern or share a type with an example.
package matchers

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Ruby Regexp option bits carried by the "o" field of a serialised pattern.
const (
	OptionIgnoreCase = 1
	OptionExtended   = 2
	OptionMultiline  = 4
)

type Matcher interface {
	// Generate returns the concrete JSON value the matcher stands for.
	Generate() interface{}
	isMatcher()
}

// Literal matches values structurally equal to Value. Value is a JSON scalar.
type Literal struct {
	Value interface{}
}

func (Literal) isMatcher() {}

func (l Literal) Generate() interface{} {
	return l.Value
}

// Term matches strings containing a match for Pattern. Example is served in generated values.
type Term struct {
	Example string
	Pattern string
	Options int
}

func (Term) isMatcher() {}

func (t Term) Generate() interface{} {
	return t.Example
}

// Regexp compiles the pattern with its options applied.
func (t Term) Regexp() (*regexp.Regexp, error) {
	return compile(t.Pattern, t.Options)
}

// Like matches any value of the same JSON kind as Example.
type Like struct {
	Example interface{}
	// contents is the matcher tree Example was generated from, kept when it nests Term or
	// Like nodes so they are encoded again.
	contents Matcher
}

func (Like) isMatcher() {}

func (l Like) Generate() interface{} {
	return l.Example
}

// Field is one key of an Object.
type Field struct {
	Key   string
	Value Matcher
}

// Object matches JSON objects key by key. Fields are kept sorted by key.
type Object struct {
	fields []Field
}

func (Object) isMatcher() {}

// NewObject builds an Object. A repeated key keeps the last value given for it.
func NewObject(fields ...Field) Object {
	byKey := make(map[string]Matcher, len(fields))
	for _, f := range fields {
		byKey[f.Key] = f.Value
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	o := Object{fields: make([]Field, 0, len(keys))}
	for _, k := range keys {
		o.fields = append(o.fields, Field{Key: k, Value: byKey[k]})
	}
	return o
}

func (o Object) Fields() []Field {
	return append([]Field(nil), o.fields...)
}

func (o Object) Len() int {
	return len(o.fields)
}

func (o Object) Get(key string) (Matcher, bool) {
	i := sort.Search(len(o.fields), func(i int) bool { return o.fields[i].Key >= key })
	if i < len(o.fields) && o.fields[i].Key == key {
		return o.fields[i].Value, true
	}
	return nil, false
}

func (o Object) Generate() interface{} {
	out := make(map[string]interface{}, len(o.fields))
	for _, f := range o.fields {
		out[f.Key] = f.Value.Generate()
	}
	return out
}

// Array matches JSON arrays element by element; length is significant.
type Array []Matcher

func (Array) isMatcher() {}

func (a Array) Generate() interface{} {
	out := make([]interface{}, len(a))
	for i, m := range a {
		out[i] = m.Generate()
	}
	return out
}

// NewTerm builds a Term, checking that the pattern compiles and that example satisfies it.
func NewTerm(example, pattern string) (Term, error) {
	return newTerm(example, pattern, 0)
}

// MustTerm is NewTerm that panics on an invalid term.
func MustTerm(example, pattern string) Term {
	t, err := NewTerm(example, pattern)
	if err != nil {
		panic(err)
	}
	return t
}

func newTerm(example, pattern string, options int) (Term, error) {
	t := Term{Example: example, Pattern: pattern, Options: options}
	re, err := t.Regexp()
	if err != nil {
		return Term{}, err
	}
	if !re.MatchString(example) {
		return Term{}, errors.Errorf("example %q does not match pattern /%s/", example, pattern)
	}
	return t, nil
}

// NewLike builds a Like whose example is the plain JSON form of v. Matchers nested in v are
// kept for encoding.
func NewLike(v interface{}) Like {
	return likeOf(From(v))
}

func likeOf(contents Matcher) Like {
	l := Like{Example: contents.Generate()}
	if nested(contents) {
		l.contents = contents
	}
	return l
}

// Contents returns the matcher tree the example was generated from.
func (l Like) Contents() Matcher {
	if l.contents != nil {
		return l.contents
	}
	return From(l.Example)
}

// nested reports whether m holds a Term or Like anywhere in its tree.
func nested(m Matcher) bool {
	switch v := m.(type) {
	case Term, Like:
		return true
	case Object:
		for _, f := range v.fields {
			if nested(f.Value) {
				return true
			}
		}
	case Array:
		for _, item := range v {
			if nested(item) {
				return true
			}
		}
	}
	return false
}

// From converts a Go value into a Matcher tree. Maps and slices become containers, Matchers
// are kept as they are and numbers are normalised to json.Number.
func From(v interface{}) Matcher {
	switch val := v.(type) {
	case Matcher:
		return val
	case map[string]interface{}:
		fields := make([]Field, 0, len(val))
		for k, fv := range val {
			fields = append(fields, Field{Key: k, Value: From(fv)})
		}
		return NewObject(fields...)
	case map[string]string:
		fields := make([]Field, 0, len(val))
		for k, fv := range val {
			fields = append(fields, Field{Key: k, Value: Literal{Value: fv}})
		}
		return NewObject(fields...)
	case []interface{}:
		arr := make(Array, len(val))
		for i, item := range val {
			arr[i] = From(item)
		}
		return arr
	case []string:
		arr := make(Array, len(val))
		for i, item := range val {
			arr[i] = Literal{Value: item}
		}
		return arr
	default:
		return Literal{Value: normalizeScalar(v)}
	}
}

func normalizeScalar(v interface{}) interface{} {
	if n, ok := ToNumber(v); ok {
		return n
	}
	return v
}

// ToNumber reports v as a json.Number when it is any Go numeric type or a json.Number. The
// number keeps its exact text so integers beyond float64 precision survive.
func ToNumber(v interface{}) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case float64:
		return formatFloat(n, 64)
	case float32:
		return formatFloat(float64(n), 32)
	case int:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int8:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int16:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int32:
		return json.Number(strconv.FormatInt(int64(n), 10)), true
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), true
	case uint:
		return json.Number(strconv.FormatUint(uint64(n), 10)), true
	case uint8:
		return json.Number(strconv.FormatUint(uint64(n), 10)), true
	case uint16:
		return json.Number(strconv.FormatUint(uint64(n), 10)), true
	case uint32:
		return json.Number(strconv.FormatUint(uint64(n), 10)), true
	case uint64:
		return json.Number(strconv.FormatUint(n, 10)), true
	}
	return "", false
}

func formatFloat(f float64, bits int) (json.Number, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	// same cutoffs as encoding/json
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return json.Number(strconv.FormatFloat(f, format, -1, bits)), true
}

// NumbersEqual compares two JSON numbers by value, so 3, 3.0 and 3e0 are equal while
// 9007199254740992 and 9007199254740993 are not.
func NumbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	x, ok := new(big.Rat).SetString(a.String())
	if !ok {
		return false
	}
	y, ok := new(big.Rat).SetString(b.String())
	return ok && x.Cmp(y) == 0
}

// ToInt reports v as an int when it is a whole number.
func ToInt(v interface{}) (int, bool) {
	n, ok := ToNumber(v)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Describe renders a matcher for diagnostics.
func Describe(m Matcher) string {
	switch v := m.(type) {
	case Term:
		return fmt.Sprintf("a string matching /%s/", v.Pattern)
	case Like:
		return fmt.Sprintf("any %s like %s", KindOf(v.Example), Repr(v.Example))
	case nil:
		return "nothing"
	default:
		return Repr(m.Generate())
	}
}

// Repr renders a JSON value compactly.
func Repr(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// KindOf names the JSON kind of a value.
func KindOf(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	}
	if _, ok := ToNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

var patterns sync.Map

func compile(pattern string, options int) (*regexp.Regexp, error) {
	if options&OptionExtended != 0 {
		return nil, errors.Errorf("extended regexp option is not supported for /%s/", pattern)
	}

	// Ruby anchors ^ and $ at line boundaries, so multi-line mode is always on.
	flags := "m"
	if options&OptionIgnoreCase != 0 {
		flags += "i"
	}
	if options&OptionMultiline != 0 {
		flags += "s"
	}
	source := "(?" + flags + ")" + pattern

	if re, ok := patterns.Load(source); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern /%s/", strings.TrimSpace(pattern))
	}
	patterns.Store(source, re)
	return re, nil
}
