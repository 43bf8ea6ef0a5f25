package mockservice

import (
	"io"
	"net/http"
	"strings"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/pkg/errors"
)

// parseActualRequest reads the request into an ActualRequest.
func parseActualRequest(req *http.Request) (contract.ActualRequest, error) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return contract.ActualRequest{}, errors.Wrap(err, "unable to read request body")
	}

	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		headers[name] = strings.Join(values, ", ")
	}

	return contract.NewActualRequest(
		req.Method,
		req.URL.Path,
		req.URL.RawQuery,
		headers,
		contract.DecodeBody(req.Header.Get("Content-Type"), data),
	), nil
}
