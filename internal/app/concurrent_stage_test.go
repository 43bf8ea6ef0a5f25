package app

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-mock-service/pkg/mockservice"
	"github.com/pact-foundation/pact-go/dsl"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

const postAddressPact = "A request to create an address"

type ConcurrentStage struct {
	t                                  *testing.T
	assert                             *assert.Assertions
	mockService                        *mockservice.MockService
	serviceURL                         string
	mu                                 sync.Mutex
	concurrentUserRequestsPerSecond    int
	concurrentUserRequestsDuration     time.Duration
	concurrentAddressRequestsPerSecond int
	concurrentAddressRequestsDuration  time.Duration
	userResponses                      []int
	addressResponses                   []int
	verifyResult                       error
}

func NewConcurrentStage(t *testing.T) (*ConcurrentStage, *ConcurrentStage, *ConcurrentStage) {
	stage, _, _ := NewMockServiceStage(t)

	s := &ConcurrentStage{
		t:           t,
		assert:      assert.New(t),
		mockService: stage.mockService,
		serviceURL:  stage.serviceURL,
	}
	return s, s, s
}

func (s *ConcurrentStage) and() *ConcurrentStage {
	return s
}

func (s *ConcurrentStage) an_interaction_that_allows_any_names() *ConcurrentStage {
	err := s.mockService.AddRawInteraction(usersInteraction(postNamePact, dsl.MapMatcher{"name": dsl.Regex("any", ".*")}).
		WillRespondWith(dsl.Response{
			Status:  200,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    map[string]string{"name": "any"},
		}))
	s.assert.NoError(err)
	return s
}

func (s *ConcurrentStage) an_interaction_that_allows_any_address() *ConcurrentStage {
	err := s.mockService.AddRawInteraction((&dsl.Interaction{}).
		UponReceiving(postAddressPact).
		WithRequest(dsl.Request{
			Method:  "POST",
			Path:    dsl.String("/addresses"),
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    dsl.MapMatcher{"address": dsl.Regex("any", ".*")},
		}).
		WillRespondWith(dsl.Response{
			Status:  201,
			Headers: dsl.MapMatcher{"Content-Type": dsl.String("application/json")},
			Body:    map[string]string{"address": "any"},
		}))
	s.assert.NoError(err)
	return s
}

func (s *ConcurrentStage) x_concurrent_user_requests_per_second_are_made_for_y_seconds(x int, y time.Duration) *ConcurrentStage {
	s.concurrentUserRequestsPerSecond = x
	s.concurrentUserRequestsDuration = y
	return s
}

func (s *ConcurrentStage) x_concurrent_address_requests_per_second_are_made_for_y_seconds(x int, y time.Duration) *ConcurrentStage {
	s.concurrentAddressRequestsPerSecond = x
	s.concurrentAddressRequestsDuration = y
	return s
}

func (s *ConcurrentStage) the_concurrent_requests_are_sent() *ConcurrentStage {
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sendConcurrentRequests(s.concurrentUserRequestsPerSecond, s.concurrentUserRequestsDuration, s.makeUserRequest)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sendConcurrentRequests(s.concurrentAddressRequestsPerSecond, s.concurrentAddressRequestsDuration, s.makeAddressRequest)
	}()

	wg.Wait()

	s.verifyResult = s.mockService.Verify("")
	return s
}

func (s *ConcurrentStage) post(path, body string) int {
	req, err := http.NewRequest("POST", s.serviceURL+path, strings.NewReader(body))
	s.assert.NoError(err)

	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if !s.assert.NoError(err) {
		return 0
	}
	res.Body.Close()
	return res.StatusCode
}

func (s *ConcurrentStage) makeUserRequest() {
	status := s.post("/users", `{"name":"jim"}`)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userResponses = append(s.userResponses, status)
}

func (s *ConcurrentStage) makeAddressRequest() {
	status := s.post("/addresses", `{"address":"test"}`)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addressResponses = append(s.addressResponses, status)
}

// sendConcurrentRequests fires requests calls of f at once, every second for d.
func sendConcurrentRequests(requests int, d time.Duration, f func()) {
	log.Infof("sending %d concurrent requests per second for %s", requests, d)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	wg := sync.WaitGroup{}
	for tick := 0; tick < int(d/time.Second); tick++ {
		<-ticker.C
		for i := 0; i < requests; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f()
			}()
		}
	}
	wg.Wait()
}

func (s *ConcurrentStage) all_the_user_responses_should_have_the_right_status_code() *ConcurrentStage {
	expectedLen := s.concurrentUserRequestsPerSecond * int(s.concurrentUserRequestsDuration/time.Second)
	s.assert.Len(s.userResponses, expectedLen, "number of user responses is not as expected")

	for _, status := range s.userResponses {
		s.assert.Equal(http.StatusOK, status, "expected user status code")
	}
	return s
}

func (s *ConcurrentStage) all_the_address_responses_should_have_the_right_status_code() *ConcurrentStage {
	expectedLen := s.concurrentAddressRequestsPerSecond * int(s.concurrentAddressRequestsDuration/time.Second)
	s.assert.Len(s.addressResponses, expectedLen, "number of address responses is not as expected")

	for _, status := range s.addressResponses {
		s.assert.Equal(http.StatusCreated, status, "expected address status code")
	}
	return s
}

func (s *ConcurrentStage) the_interactions_are_verified() *ConcurrentStage {
	s.assert.NoError(s.verifyResult, fmt.Sprintf("verification failed after %d requests", len(s.userResponses)+len(s.addressResponses)))
	return s
}
