package contract

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DecodeBody turns an HTTP body into the value compared against a body expectation. Bodies
// with a JSON media type are decoded, other bodies are kept as text and an empty body is nil.
func DecodeBody(contentType string, data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	if mediaType := parseMediaType(contentType); isJSON(mediaType) {
		var body interface{}
		if err := unmarshal(data, &body); err == nil {
			return body
		}
		log.Warnf("body is not valid %s, comparing it as text", mediaType)
	}
	return string(data)
}

func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		log.Warnf("failed to parse Content-Type header %q: %s", contentType, err)
		return ""
	}
	return mediaType
}

func isJSON(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// unmarshal is json.Unmarshal with numbers decoded as json.Number, so integers beyond
// float64 precision keep their exact value.
func unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("invalid character after top-level value")
	}
	return nil
}
