package mockservice

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MockService talks to the administrative endpoints of a running mock service.
type MockService struct {
	client http.Client
	url    string
}

func New(url string) *MockService {
	return &MockService{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

// ResponseError is returned when the mock service answers with a non 2xx status.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return e.Body
}

func (m *MockService) do(method, path string, query url.Values, body interface{}) (string, error) {
	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		if err != nil {
			return "", errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(content)
	}

	target := m.url + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return "", err
	}
	req.Header.Set(mockservice.AdminHeader, "true")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &ResponseError{StatusCode: res.StatusCode, Body: string(responseBody)}
	}
	return string(responseBody), nil
}

func exampleQuery(exampleDescription string) url.Values {
	if exampleDescription == "" {
		return nil
	}
	return url.Values{"example_description": []string{exampleDescription}}
}

func (m *MockService) IsReady() error {
	_, err := m.do(http.MethodGet, "/ready", nil, nil)
	return err
}

// WaitUntilReady polls the service until it is ready or timeout has elapsed.
func (m *MockService) WaitUntilReady(timeout, interval time.Duration) error {
	return poll(m.IsReady, timeout, interval)
}

func (m *MockService) AddInteraction(interaction Interaction) error {
	_, err := m.do(http.MethodPost, "/interactions", nil, interaction)
	return err
}

// AddRawInteraction registers any value that marshals to the pact interaction format, such
// as an interaction built with another pact library.
func (m *MockService) AddRawInteraction(interaction interface{}) error {
	_, err := m.do(http.MethodPost, "/interactions", nil, interaction)
	return err
}

// SetInteractions replaces every registered interaction.
func (m *MockService) SetInteractions(exampleDescription string, interactions ...Interaction) error {
	if interactions == nil {
		interactions = []Interaction{}
	}
	_, err := m.do(http.MethodPut, "/interactions", exampleQuery(exampleDescription), map[string]interface{}{
		"interactions": interactions,
	})
	return err
}

func (m *MockService) ClearInteractions(exampleDescription string) error {
	_, err := m.do(http.MethodDelete, "/interactions", exampleQuery(exampleDescription), nil)
	return err
}

// ResetCycle keeps the registered interactions but forgets which were matched.
func (m *MockService) ResetCycle() error {
	_, err := m.do(http.MethodPost, "/interactions/reset", nil, nil)
	return err
}

// Interactions lists the registered interactions and their status.
func (m *MockService) Interactions() ([]InteractionStatus, error) {
	body, err := m.do(http.MethodGet, "/interactions", nil, nil)
	if err != nil {
		return nil, err
	}
	var statuses []InteractionStatus
	if err := json.Unmarshal([]byte(body), &statuses); err != nil {
		return nil, errors.Wrap(err, "failed to parse interactions")
	}
	return statuses, nil
}

// Verify fails with the service's description of missing and unexpected requests.
func (m *MockService) Verify(exampleDescription string) error {
	_, err := m.do(http.MethodGet, "/interactions/verification", exampleQuery(exampleDescription), nil)
	return err
}

func (m *MockService) NumberOfMissingInteractions() (int, error) {
	body, err := m.do(http.MethodGet, "/number_of_missing_interactions", nil, nil)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected number of missing interactions %q", body)
	}
	return n, nil
}

// WaitForInteractions polls verification until it passes or timeout has elapsed, and then
// returns the last failure.
func (m *MockService) WaitForInteractions(timeout, interval time.Duration) error {
	return poll(func() error { return m.Verify("") }, timeout, interval)
}

// WaitForAll waits on the service until every interaction has been matched.
func (m *MockService) WaitForAll() error {
	_, err := m.do(http.MethodGet, "/interactions/wait", nil, nil)
	return err
}

// WaitForInteraction waits on the service until the interaction received count requests.
func (m *MockService) WaitForInteraction(description string, count int) error {
	q := url.Values{}
	q.Add("interaction", description)
	q.Add("count", strconv.Itoa(count))

	_, err := m.do(http.MethodGet, "/interactions/wait", q, nil)
	return err
}

// Log writes msg to the service's log.
func (m *MockService) Log(msg string) error {
	_, err := m.do(http.MethodGet, "/log", url.Values{"msg": []string{msg}}, nil)
	return err
}

// WritePact writes the pact file. details may be nil to use the service's configuration.
func (m *MockService) WritePact(details *PactDetails) (Contract, error) {
	var body interface{}
	if details != nil {
		body = details
	}
	response, err := m.do(http.MethodPost, "/pact", nil, body)
	if err != nil {
		return Contract{}, err
	}
	return contract.Parse([]byte(response))
}

func poll(do func() error, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	start := time.Now()
	return retry.Do(do,
		retry.Attempts(uint(timeout/interval)+1),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if time.Since(start) >= timeout {
				return false
			}
			log.WithError(err).Debug("mock service not ready, retrying")
			return true
		}))
}
