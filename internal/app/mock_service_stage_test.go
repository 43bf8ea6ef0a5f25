package app

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/pkg/mockservice"
	"github.com/pact-foundation/pact-go/dsl"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

const (
	consumerName = "Zoo App"
	providerName = "Animal Service"

	postNamePact    = "A request to create a user"
	postNamePactDup = "Another request to create a user"
	postAgePact     = "A request to create a user with an age"
	postTextPact    = "A request to create a user from text"
	getUserPact     = "A request for user 123"
)

var largeString = strings.Repeat("long_string123BBmmF8BYezrBhCROOCRJfeH5k69hMKXH77TSvwF5GHUZFnbh1dsZ3d90HeR0jUIOovJJVS508uI17djeLFFSb7", 440)

type MockServiceStage struct {
	t              *testing.T
	assert         *assert.Assertions
	mockService    *mockservice.MockService
	serviceURL     string
	pactDir        string
	mu             sync.Mutex
	responses      []*http.Response
	responseBodies [][]byte
	verifyResult   error
	waitResult     error
	pact           contract.Contract
}

func NewMockServiceStage(t *testing.T) (*MockServiceStage, *MockServiceStage, *MockServiceStage) {
	s := &MockServiceStage{
		t:       t,
		assert:  assert.New(t),
		pactDir: t.TempDir(),
	}

	mockService, serviceURL, err := s.setupAndWaitForMockService()
	if err != nil {
		t.Fatalf("Error setting up mock service: %v", err)
	}
	s.mockService = mockService
	s.serviceURL = serviceURL

	t.Cleanup(func() {
		if err := mockservice.Configuration(controlURL.String()).Reset(); err != nil {
			t.Logf("Error resetting mock services: %v", err)
		}
	})

	return s, s, s
}

func (s *MockServiceStage) setupAndWaitForMockService() (*mockservice.MockService, string, error) {
	serviceURL, err := newMockServiceURL()
	if err != nil {
		return nil, "", err
	}

	mockService, err := mockservice.
		Configuration(controlURL.String()).
		SetupMockServiceWithConfig(&mockservice.Config{
			ServerAddress: *serviceURL,
			Consumer:      consumerName,
			Provider:      providerName,
			PactDir:       s.pactDir,
		})
	if err != nil {
		return nil, "", errors.Wrap(err, "mock service setup failed")
	}

	if err := mockService.WaitUntilReady(5*time.Second, 50*time.Millisecond); err != nil {
		return nil, "", errors.Wrap(err, "mock service readiness wait failed")
	}
	return mockService, serviceURL.String(), nil
}

func (s *MockServiceStage) and() *MockServiceStage {
	return s
}

func (s *MockServiceStage) register(interaction *dsl.Interaction) {
	err := s.mockService.AddRawInteraction(interaction)
	s.assert.NoError(err, "unable to register interaction %q", interaction.Description)
}

func usersInteraction(description string, body dsl.MapMatcher) *dsl.Interaction {
	return (&dsl.Interaction{}).
		UponReceiving(description).
		WithRequest(dsl.Request{
			Method:  "POST",
			Path:    dsl.String("/users"),
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    body,
		})
}

func (s *MockServiceStage) an_interaction_that_allows_any_names() *MockServiceStage {
	s.register(usersInteraction(postNamePact, dsl.MapMatcher{"name": dsl.Regex("any", ".*")}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    map[string]string{"name": "any"},
		}))
	return s
}

func (s *MockServiceStage) another_interaction_that_allows_any_names() *MockServiceStage {
	s.register(usersInteraction(postNamePactDup, dsl.MapMatcher{"name": dsl.Regex("any", ".*")}).
		WillRespondWith(dsl.Response{
			Status: 201,
		}))
	return s
}

func (s *MockServiceStage) an_interaction_that_allows_any_age() *MockServiceStage {
	s.register(usersInteraction(postAgePact, dsl.MapMatcher{"age": dsl.Integer()}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    map[string]int64{"age": 100},
		}))
	return s
}

func (s *MockServiceStage) an_interaction_that_returns_a_large_body() *MockServiceStage {
	s.register(usersInteraction(postNamePact, dsl.MapMatcher{"name": dsl.Regex("any", ".*")}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body: dsl.MapMatcher{
				"large_string": dsl.String(largeString),
				"name":         dsl.Regex("any", ".*"),
			},
		}))
	return s
}

func (s *MockServiceStage) an_interaction_that_expects_plain_text() *MockServiceStage {
	s.register((&dsl.Interaction{}).
		UponReceiving(postTextPact).
		WithRequest(dsl.Request{
			Method:  "POST",
			Path:    dsl.String("/users"),
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("text/plain")},
			Body:    "text",
		}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("text/plain")},
			Body:    "text",
		}))
	return s
}

func (s *MockServiceStage) an_interaction_for_a_user_given_it_exists() *MockServiceStage {
	s.register((&dsl.Interaction{}).
		Given("user 123 exists").
		UponReceiving(getUserPact).
		WithRequest(dsl.Request{
			Method: "GET",
			Path:   dsl.String("/users/123"),
		}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    dsl.MapMatcher{"id": dsl.Like(123)},
		}))
	return s
}

func (s *MockServiceStage) an_interaction_with_a_path_matcher_is_rejected() *MockServiceStage {
	err := s.mockService.AddRawInteraction((&dsl.Interaction{}).
		UponReceiving("A request for any user").
		WithRequest(dsl.Request{
			Method: "GET",
			Path:   dsl.Term("/users/123", `^/users/\d+$`),
		}).
		WillRespondWith(dsl.Response{Status: 200}))

	var responseErr *mockservice.ResponseError
	if s.assert.ErrorAs(err, &responseErr) {
		s.assert.Equal(http.StatusBadRequest, responseErr.StatusCode)
		s.assert.Contains(responseErr.Body, "path")
	}
	return s
}

func (s *MockServiceStage) the_interactions_are_cleared() *MockServiceStage {
	s.assert.NoError(s.mockService.ClearInteractions("next example"))
	return s
}

func (s *MockServiceStage) a_request_is_sent_using_the_name(name string) *MockServiceStage {
	return s.n_requests_are_sent_using_the_name(1, name)
}

func (s *MockServiceStage) n_requests_are_sent_using_the_name(n int, name string) *MockServiceStage {
	return s.n_requests_are_sent_using_the_body(n, fmt.Sprintf(`{"name":"%s"}`, name))
}

func (s *MockServiceStage) a_request_is_sent_using_the_age(age int64) *MockServiceStage {
	return s.n_requests_are_sent_using_the_body(1, fmt.Sprintf(`{"age": %d}`, age))
}

func (s *MockServiceStage) n_requests_are_sent_using_the_body(n int, body string) *MockServiceStage {
	return s.n_requests_are_sent_using_the_body_and_content_type(n, body, "application/json")
}

func (s *MockServiceStage) a_plain_text_request_is_sent_with_body(body string) *MockServiceStage {
	return s.n_requests_are_sent_using_the_body_and_content_type(1, body, "text/plain")
}

func (s *MockServiceStage) n_requests_are_sent_using_the_body_and_content_type(n int, body, contentType string) *MockServiceStage {
	for i := 0; i < n; i++ {
		s.send_request_and_collect_response(http.MethodPost, "/users", body, contentType)
	}
	return s
}

func (s *MockServiceStage) a_request_for_user_is_sent(id int) *MockServiceStage {
	s.send_request_and_collect_response(http.MethodGet, fmt.Sprintf("/users/%d", id), "", "")
	return s
}

func (s *MockServiceStage) send_request_and_collect_response(method, path, body, contentType string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.serviceURL+path, reader)
	if !s.assert.NoError(err, "request creation failed") {
		return
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := http.DefaultClient.Do(req)
	if !s.assert.NoError(err, "sending request failed") {
		return
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	s.assert.NoError(err, "unable to read response body")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, res)
	s.responseBodies = append(s.responseBodies, bodyBytes)
}

func (s *MockServiceStage) requests_are_sent_while_waiting(n int) *MockServiceStage {
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		s.n_requests_are_sent_using_the_name(n, "late")
	}()
	s.waitResult = s.mockService.WaitForInteraction(postNamePact, n)
	wg.Wait()
	return s
}

func (s *MockServiceStage) the_interactions_are_verified() *MockServiceStage {
	s.verifyResult = s.mockService.Verify("")
	return s
}

func (s *MockServiceStage) the_pact_is_written() *MockServiceStage {
	pact, err := s.mockService.WritePact(nil)
	s.assert.NoError(err, "unable to write pact")
	s.pact = pact
	return s
}

func (s *MockServiceStage) verification_is_successful() *MockServiceStage {
	s.assert.NoError(s.verifyResult)
	return s
}

func (s *MockServiceStage) verification_is_not_successful() *MockServiceStage {
	s.assert.Error(s.verifyResult, "verification did not fail")
	return s
}

func (s *MockServiceStage) verification_reports_(text string) *MockServiceStage {
	if s.assert.Error(s.verifyResult) {
		s.assert.Contains(s.verifyResult.Error(), text)
	}
	return s
}

func (s *MockServiceStage) the_mock_service_waits_for_all_requests() *MockServiceStage {
	s.assert.NoError(s.waitResult, "mock service did not wait for requests")
	missing, err := s.mockService.NumberOfMissingInteractions()
	s.assert.NoError(err)
	s.assert.Equal(0, missing)
	return s
}

func (s *MockServiceStage) the_response_is_(statusCode int) *MockServiceStage {
	return s.the_nth_response_is_(1, statusCode)
}

func (s *MockServiceStage) the_nth_response_is_(n, statusCode int) *MockServiceStage {
	if s.assert.GreaterOrEqual(len(s.responses), n, "number of responses is less than expected") {
		s.assert.Equalf(statusCode, s.responses[n-1].StatusCode, "Expected status code on attempt %d: %d, got : %d", n, statusCode, s.responses[n-1].StatusCode)
	}
	return s
}

func (s *MockServiceStage) the_response_name_is_(name string) *MockServiceStage {
	return s.the_nth_response_body_has_(1, "name", name)
}

func (s *MockServiceStage) the_nth_response_body_has_(n int, key, value string) *MockServiceStage {
	if !s.assert.GreaterOrEqual(len(s.responseBodies), n, "number of response bodies is less than expected") {
		return s
	}

	var responseBody map[string]interface{}
	err := json.Unmarshal(s.responseBodies[n-1], &responseBody)
	s.assert.NoError(err, "unable to parse response body, %v", err)
	s.assert.Equalf(value, responseBody[key], "Expected %s on attempt %d,: %s, got: %v", key, n, value, responseBody[key])
	return s
}

func (s *MockServiceStage) the_response_age_is_(age float64) *MockServiceStage {
	if !s.assert.NotEmpty(s.responseBodies) {
		return s
	}
	var responseBody map[string]interface{}
	s.assert.NoError(json.Unmarshal(s.responseBodies[0], &responseBody))
	s.assert.Equal(age, responseBody["age"])
	return s
}

func (s *MockServiceStage) the_response_body_is(data string) *MockServiceStage {
	if s.assert.NotEmpty(s.responseBodies) {
		s.assert.Equal(data, string(s.responseBodies[0]))
	}
	return s
}

func (s *MockServiceStage) the_response_describes_the_candidates(descriptions ...string) *MockServiceStage {
	if !s.assert.NotEmpty(s.responseBodies) {
		return s
	}
	var body struct {
		Message          string `json:"message"`
		InteractionDiffs []struct {
			Description string `json:"description"`
		} `json:"interaction_diffs"`
	}
	s.assert.NoError(json.Unmarshal(s.responseBodies[0], &body))
	s.assert.True(strings.HasPrefix(body.Message, "No interaction found for"), body.Message)

	var got []string
	for _, diff := range body.InteractionDiffs {
		got = append(got, diff.Description)
	}
	s.assert.Equal(descriptions, got)
	return s
}

func (s *MockServiceStage) the_response_lists_the_matching_interactions(descriptions ...string) *MockServiceStage {
	if !s.assert.NotEmpty(s.responseBodies) {
		return s
	}
	var body struct {
		Message              string `json:"message"`
		MatchingInteractions []struct {
			Description string `json:"description"`
		} `json:"matching_interactions"`
	}
	s.assert.NoError(json.Unmarshal(s.responseBodies[0], &body))
	s.assert.True(strings.HasPrefix(body.Message, "Multiple interaction found for"), body.Message)

	var got []string
	for _, interaction := range body.MatchingInteractions {
		got = append(got, interaction.Description)
	}
	s.assert.ElementsMatch(descriptions, got)
	return s
}

func (s *MockServiceStage) the_pact_contains_(descriptions ...string) *MockServiceStage {
	var got []string
	for _, interaction := range s.pact.Interactions {
		got = append(got, interaction.Description)
	}
	s.assert.ElementsMatch(descriptions, got)
	return s
}

func (s *MockServiceStage) the_pact_file_is_written() *MockServiceStage {
	path := filepath.Join(s.pactDir, contract.FileName(consumerName, providerName))
	data, err := os.ReadFile(path)
	if !s.assert.NoError(err, "pact file not written") {
		return s
	}
	written, err := contract.Parse(data)
	s.assert.NoError(err)
	s.assert.Equal(s.pact, written)
	return s
}

func (s *MockServiceStage) the_provider_state_is_written_as(state string) *MockServiceStage {
	if s.assert.Len(s.pact.Interactions, 1) {
		s.assert.Equal(state, s.pact.Interactions[0].ProviderState)
	}
	return s
}
