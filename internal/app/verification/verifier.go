package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/differ"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// Verifier replays interactions against a provider and compares the responses with the
// contract.
type Verifier struct {
	client  *http.Client
	baseURL string
	states  *ProviderStates
}

func NewVerifier(baseURL string, states *ProviderStates, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if states == nil {
		states = NewProviderStates()
	}
	return &Verifier{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		states:  states,
	}
}

// Result is the outcome of verifying one interaction. Err is set when the interaction could
// not be replayed at all.
type Result struct {
	Interaction contract.Interaction
	Differences differ.Differences
	Err         error
}

func (r Result) Passed() bool {
	return r.Err == nil && r.Differences.Empty()
}

// Report collects the results for one contract.
type Report struct {
	Consumer string
	Provider string
	Results  []Result
}

func (r Report) Passed() bool {
	for _, result := range r.Results {
		if !result.Passed() {
			return false
		}
	}
	return true
}

func (r Report) Failures() int {
	failures := 0
	for _, result := range r.Results {
		if !result.Passed() {
			failures++
		}
	}
	return failures
}

func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Verifying a pact between %s and %s\n", r.Consumer, r.Provider)
	for _, result := range r.Results {
		key := result.Interaction.Key()
		switch {
		case result.Err != nil:
			fmt.Fprintf(&sb, "  %s: ERROR %s\n", key, result.Err)
		case !result.Differences.Empty():
			fmt.Fprintf(&sb, "  %s: FAILED\n", key)
			for _, d := range result.Differences {
				fmt.Fprintf(&sb, "    %s\n", d)
			}
		default:
			fmt.Fprintf(&sb, "  %s: OK\n", key)
		}
	}
	fmt.Fprintf(&sb, "%d interactions, %d failures\n", len(r.Results), r.Failures())
	return sb.String()
}

// VerifyContract verifies every interaction in c matching criteria, in contract order.
func (v *Verifier) VerifyContract(ctx context.Context, c contract.Contract, criteria contract.Criteria) Report {
	report := Report{Consumer: c.Consumer.Name, Provider: c.Provider.Name}
	for _, interaction := range c.FindInteractions(criteria) {
		report.Results = append(report.Results, v.VerifyInteraction(ctx, c.Consumer.Name, interaction))
	}
	return report
}

// VerifyInteraction sets up the interaction's provider state, replays the request and tears
// the state down again.
func (v *Verifier) VerifyInteraction(ctx context.Context, consumer string, interaction contract.Interaction) Result {
	result := Result{Interaction: interaction}
	logger := log.WithFields(log.Fields{
		"consumer":    consumer,
		"description": interaction.Description,
		"state":       interaction.ProviderState,
	})

	state := State{}
	if interaction.ProviderState != "" {
		var ok bool
		state, ok = v.states.Get(consumer, interaction.ProviderState)
		if !ok {
			result.Err = errors.Errorf("could not find provider state %q for consumer %q", interaction.ProviderState, consumer)
			return result
		}
	}

	if err := state.setUp(ctx); err != nil {
		result.Err = errors.Wrapf(err, "unable to set up provider state %q", interaction.ProviderState)
		return result
	}
	defer func() {
		if err := state.tearDown(ctx); err != nil {
			logger.WithError(err).Error("unable to tear down provider state")
			if result.Err == nil {
				result.Err = errors.Wrapf(err, "unable to tear down provider state %q", interaction.ProviderState)
			}
		}
	}()

	actual, err := v.replay(ctx, interaction.Request)
	if err != nil {
		result.Err = err
		return result
	}

	result.Differences = interaction.Response.Difference(actual)
	if result.Differences.Empty() {
		logger.Info("interaction verified")
	} else {
		logger.Warnf("interaction failed verification with %d differences", len(result.Differences))
	}
	return result
}

func (v *Verifier) replay(ctx context.Context, expected contract.RequestExpectation) (contract.ActualResponse, error) {
	req, err := v.newRequest(ctx, expected)
	if err != nil {
		return contract.ActualResponse{}, err
	}

	res, err := v.client.Do(req)
	if err != nil {
		return contract.ActualResponse{}, errors.Wrapf(err, "unable to send %s", expected.ShortDescription())
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return contract.ActualResponse{}, errors.Wrap(err, "unable to read provider response")
	}

	headers := make(map[string]string, len(res.Header))
	for name, values := range res.Header {
		headers[name] = strings.Join(values, ", ")
	}

	return contract.ActualResponse{
		Status:  res.StatusCode,
		Headers: headers,
		Body:    contract.DecodeBody(res.Header.Get("Content-Type"), data),
	}, nil
}

func (v *Verifier) newRequest(ctx context.Context, expected contract.RequestExpectation) (*http.Request, error) {
	target := v.baseURL + expected.Path
	if expected.Path == "" {
		target += "/"
	}
	if expected.Query.Specified() {
		if query := contract.FormatQuery(expected.Query.Matcher().Generate()); query != "" {
			target += "?" + query
		}
	}

	var body io.Reader
	var rawBody bool
	if expected.Body.Specified() {
		switch generated := expected.Body.Matcher().Generate().(type) {
		case nil:
		case string:
			body = strings.NewReader(generated)
			rawBody = true
		default:
			content, err := json.Marshal(generated)
			if err != nil {
				return nil, errors.Wrap(err, "unable to render request body")
			}
			body = bytes.NewReader(content)
		}
	}

	req, err := http.NewRequestWithContext(ctx, expected.Method, target, body)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to build %s", expected.ShortDescription())
	}

	if expected.Headers.Specified() {
		if headers, ok := expected.Headers.Matcher().Generate().(map[string]interface{}); ok {
			for name, value := range headers {
				req.Header.Set(name, fmt.Sprintf("%v", value))
			}
		}
	}
	if body != nil && !rawBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}
