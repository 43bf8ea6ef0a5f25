package contract

import (
	"encoding/json"
	"fmt"

	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
	"github.com/pkg/errors"
)

// Version is written to the metadata of every pact file.
const Version = "1.0.0"

type wireMetadata struct {
	PactGem struct {
		Version string `json:"version"`
	} `json:"pact_gem"`
}

type wireContract struct {
	Consumer     ServiceConsumer `json:"consumer"`
	Provider     ServiceProvider `json:"provider"`
	Interactions []Interaction   `json:"interactions"`
	Metadata     wireMetadata    `json:"metadata"`
}

type wireInteraction struct {
	Description   string              `json:"description"`
	ProviderState *string             `json:"provider_state"`
	Request       RequestExpectation  `json:"request"`
	Response      ResponseExpectation `json:"response"`
}

func (c Contract) MarshalJSON() ([]byte, error) {
	w := wireContract{
		Consumer:     c.Consumer,
		Provider:     c.Provider,
		Interactions: c.Interactions,
	}
	if w.Interactions == nil {
		w.Interactions = []Interaction{}
	}
	w.Metadata.PactGem.Version = Version
	return json.Marshal(w)
}

func (i Interaction) MarshalJSON() ([]byte, error) {
	w := wireInteraction{
		Description: i.Description,
		Request:     i.Request,
		Response:    i.Response,
	}
	if i.ProviderState != "" {
		state := i.ProviderState
		w.ProviderState = &state
	}
	return json.Marshal(w)
}

func (r RequestExpectation) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"method": r.Method,
		"path":   r.Path,
	}
	if r.Headers.Specified() {
		out["headers"] = matchers.Encode(r.Headers.Matcher())
	}
	if r.Query.Specified() {
		out["query"] = matchers.Encode(r.Query.Matcher())
	}
	if r.Body.Specified() {
		out["body"] = matchers.Encode(r.Body.Matcher())
	}
	if r.Options != (RequestOptions{}) {
		out["options"] = r.Options
	}
	return json.Marshal(out)
}

func (r ResponseExpectation) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"status": r.Status,
	}
	if len(r.Headers) > 0 {
		headers := make(map[string]interface{}, len(r.Headers))
		for name, m := range r.Headers {
			headers[name] = matchers.Encode(m)
		}
		out["headers"] = headers
	}
	if r.Body.Specified() {
		out["body"] = matchers.Encode(r.Body.Matcher())
	}
	return json.Marshal(out)
}

func (i *Interaction) UnmarshalJSON(data []byte) error {
	interaction, err := ParseInteraction(data)
	if err != nil {
		return err
	}
	*i = interaction
	return nil
}

func (c *Contract) UnmarshalJSON(data []byte) error {
	contract, err := Parse(data)
	if err != nil {
		return err
	}
	*c = contract
	return nil
}

func decodeContract(doc interface{}) (Contract, error) {
	top, ok := doc.(map[string]interface{})
	if !ok {
		return Contract{}, parseErrorf("$", "contract must be an object")
	}

	consumer, err := requiredName(top, "consumer")
	if err != nil {
		return Contract{}, err
	}
	provider, err := requiredName(top, "provider")
	if err != nil {
		return Contract{}, err
	}

	rawInteractions, present := top["interactions"]
	if !present {
		return Contract{}, parseErrorf("interactions", "key is required")
	}
	list, ok := rawInteractions.([]interface{})
	if !ok {
		return Contract{}, parseErrorf("interactions", "must be an array")
	}

	c := Contract{
		Consumer:     ServiceConsumer{Name: consumer},
		Provider:     ServiceProvider{Name: provider},
		Interactions: make([]Interaction, 0, len(list)),
	}
	for n, raw := range list {
		interaction, err := decodeInteraction(raw, fmt.Sprintf("interactions[%d]", n))
		if err != nil {
			return Contract{}, err
		}
		c.Interactions = append(c.Interactions, interaction)
	}
	return c, nil
}

func requiredName(top map[string]interface{}, key string) (string, error) {
	party, ok := top[key].(map[string]interface{})
	if !ok {
		return "", parseErrorf(key+".name", "key is required")
	}
	name, ok := party["name"].(string)
	if !ok {
		return "", parseErrorf(key+".name", "key is required")
	}
	return name, nil
}

func decodeInteraction(doc interface{}, path string) (Interaction, error) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return Interaction{}, parseErrorf(path, "interaction must be an object")
	}

	description, ok := obj["description"].(string)
	if !ok {
		return Interaction{}, parseErrorf(path+".description", "must be a string")
	}

	var state string
	switch s := obj["provider_state"].(type) {
	case nil:
	case string:
		state = s
	default:
		return Interaction{}, parseErrorf(path+".provider_state", "must be a string or null")
	}

	request, err := decodeRequest(obj["request"], path+".request")
	if err != nil {
		return Interaction{}, err
	}
	response, err := decodeResponse(obj["response"], path+".response")
	if err != nil {
		return Interaction{}, err
	}

	return Interaction{
		Description:   description,
		ProviderState: state,
		Request:       request,
		Response:      response,
	}, nil
}

func decodeRequest(doc interface{}, path string) (RequestExpectation, error) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return RequestExpectation{}, parseErrorf(path, "request is required")
	}
	if err := applyMatchingRules(obj, path); err != nil {
		return RequestExpectation{}, err
	}

	method, ok := obj["method"].(string)
	if !ok {
		return RequestExpectation{}, parseErrorf(path+".method", "must be a string")
	}
	reqPath, ok := obj["path"].(string)
	if !ok {
		return RequestExpectation{}, parseErrorf(path+".path", "must be a string")
	}

	r := NewRequestExpectation(method, reqPath)

	var err error
	if r.Query, err = decodeField(obj, "query", path); err != nil {
		return RequestExpectation{}, err
	}
	if r.Headers, err = decodeField(obj, "headers", path); err != nil {
		return RequestExpectation{}, err
	}
	if r.Headers.Specified() {
		if _, isObject := r.Headers.Matcher().(matchers.Object); !isObject {
			return RequestExpectation{}, parseErrorf(path+".headers", "must be an object")
		}
	}
	if r.Body, err = decodeField(obj, "body", path); err != nil {
		return RequestExpectation{}, err
	}

	if options, present := obj["options"]; present {
		opts, ok := options.(map[string]interface{})
		if !ok {
			return RequestExpectation{}, parseErrorf(path+".options", "must be an object")
		}
		allow, _ := opts["allow_unexpected_keys_in_body"].(bool)
		r.Options.AllowUnexpectedKeysInBody = allow
	}
	return r, nil
}

func decodeResponse(doc interface{}, path string) (ResponseExpectation, error) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return ResponseExpectation{}, parseErrorf(path, "response is required")
	}
	if err := applyMatchingRules(obj, path); err != nil {
		return ResponseExpectation{}, err
	}

	status, ok := matchers.ToInt(obj["status"])
	if !ok {
		return ResponseExpectation{}, parseErrorf(path+".status", "must be an integer")
	}
	r := ResponseExpectation{Status: status}

	if rawHeaders, present := obj["headers"]; present && rawHeaders != nil {
		headers, ok := rawHeaders.(map[string]interface{})
		if !ok {
			return ResponseExpectation{}, parseErrorf(path+".headers", "must be an object")
		}
		r.Headers = make(map[string]matchers.Matcher, len(headers))
		for name, value := range headers {
			m, err := decodeMatcher(value, path+".headers."+name)
			if err != nil {
				return ResponseExpectation{}, err
			}
			r.Headers[name] = m
		}
	}

	var err error
	if r.Body, err = decodeField(obj, "body", path); err != nil {
		return ResponseExpectation{}, err
	}
	return r, nil
}

func decodeField(obj map[string]interface{}, key, path string) (Field, error) {
	raw, present := obj[key]
	if !present {
		return NotSpecified(), nil
	}
	m, err := decodeMatcher(raw, path+"."+key)
	if err != nil {
		return Field{}, err
	}
	return Field{matcher: m, specified: true}, nil
}

func decodeMatcher(raw interface{}, path string) (matchers.Matcher, error) {
	m, err := matchers.Decode(raw, path)
	if err != nil {
		var decodeErr *matchers.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, parseErrorf(decodeErr.Path, "%s", decodeErr.Msg)
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	return m, nil
}
