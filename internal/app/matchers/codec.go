package matchers

import (
	"encoding/json"
	"fmt"
)

const (
	classTerm   = "Pact::Term"
	classLike   = "Pact::SomethingLike"
	classRegexp = "Regexp"
	classKey    = "json_class"
)

// DecodeError reports a matcher document that could not be decoded.
type DecodeError struct {
	Path string
	Msg  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func decodeErrorf(path, format string, a ...interface{}) *DecodeError {
	return &DecodeError{Path: path, Msg: fmt.Sprintf(format, a...)}
}

// Decode builds a Matcher from a generic JSON value (as produced by encoding/json). Objects
// tagged with json_class are decoded as Term or Like; any other tag is rejected. path names
// the location of v in its document and prefixes any DecodeError.
func Decode(v interface{}, path string) (Matcher, error) {
	switch val := v.(type) {
	case map[string]interface{}:
		if class, tagged := val[classKey]; tagged {
			return decodeTagged(val, class, path)
		}
		fields := make([]Field, 0, len(val))
		for k, fv := range val {
			m, err := Decode(fv, path+"."+k)
			if err != nil {
				return nil, err
			}
			fields = append(fields, Field{Key: k, Value: m})
		}
		return NewObject(fields...), nil
	case []interface{}:
		arr := make(Array, len(val))
		for i, item := range val {
			m, err := Decode(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = m
		}
		return arr, nil
	default:
		return Literal{Value: normalizeScalar(v)}, nil
	}
}

func decodeTagged(val map[string]interface{}, class interface{}, path string) (Matcher, error) {
	switch class {
	case classTerm:
		return decodeTerm(val, path)
	case classLike:
		contents, ok := val["contents"]
		if !ok {
			return nil, decodeErrorf(path, "%s has no contents", classLike)
		}
		m, err := Decode(contents, path+".contents")
		if err != nil {
			return nil, err
		}
		return likeOf(m), nil
	}
	return nil, decodeErrorf(path, "unsupported json_class %v", class)
}

func decodeTerm(val map[string]interface{}, path string) (Matcher, error) {
	data, ok := val["data"].(map[string]interface{})
	if !ok {
		return nil, decodeErrorf(path, "%s has no data", classTerm)
	}
	generate, ok := data["generate"].(string)
	if !ok {
		return nil, decodeErrorf(path, "%s data.generate must be a string", classTerm)
	}
	matcher, ok := data["matcher"].(map[string]interface{})
	if !ok {
		return nil, decodeErrorf(path, "%s has no data.matcher", classTerm)
	}
	if matcher[classKey] != classRegexp {
		return nil, decodeErrorf(path, "%s data.matcher must be a %s", classTerm, classRegexp)
	}
	pattern, ok := matcher["s"].(string)
	if !ok {
		return nil, decodeErrorf(path, "%s data.matcher.s must be a string", classTerm)
	}

	options := 0
	if o, present := matcher["o"]; present {
		n, ok := ToInt(o)
		if !ok {
			return nil, decodeErrorf(path, "%s data.matcher.o must be an integer", classTerm)
		}
		options = n
	}

	t, err := newTerm(generate, pattern, options)
	if err != nil {
		return nil, decodeErrorf(path, "%s", err.Error())
	}
	return t, nil
}

// Encode returns the generic JSON form of a matcher, using the json_class encoding for Term
// and Like nodes.
func Encode(m Matcher) interface{} {
	switch v := m.(type) {
	case nil:
		return nil
	case Literal:
		return v.Value
	case Term:
		return map[string]interface{}{
			classKey: classTerm,
			"data": map[string]interface{}{
				"generate": v.Example,
				"matcher": map[string]interface{}{
					classKey: classRegexp,
					"o":      v.Options,
					"s":      v.Pattern,
				},
			},
		}
	case Like:
		return map[string]interface{}{
			classKey:   classLike,
			"contents": Encode(v.Contents()),
		}
	case Object:
		out := make(map[string]interface{}, len(v.fields))
		for _, f := range v.fields {
			out[f.Key] = Encode(f.Value)
		}
		return out
	case Array:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = Encode(item)
		}
		return out
	}
	return m.Generate()
}

func (l Literal) MarshalJSON() ([]byte, error) { return json.Marshal(Encode(l)) }
func (t Term) MarshalJSON() ([]byte, error)    { return json.Marshal(Encode(t)) }
func (l Like) MarshalJSON() ([]byte, error)    { return json.Marshal(Encode(l)) }
func (o Object) MarshalJSON() ([]byte, error)  { return json.Marshal(Encode(o)) }
func (a Array) MarshalJSON() ([]byte, error)   { return json.Marshal(Encode(a)) }
