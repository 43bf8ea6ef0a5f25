package mockservice

import (
	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/matchers"
	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
)

type (
	Contract            = contract.Contract
	Interaction         = contract.Interaction
	RequestExpectation  = contract.RequestExpectation
	ResponseExpectation = contract.ResponseExpectation
	PactDetails         = mockservice.PactDetails
	Matcher             = matchers.Matcher
)

type Config mockservice.Config

// InteractionStatus is one entry of the service's interaction list.
type InteractionStatus struct {
	Description   string  `json:"description"`
	ProviderState *string `json:"provider_state"`
	Request       string  `json:"request"`
	Status        string  `json:"status"`
	Requests      int     `json:"requests"`
}

// NewInteraction returns an interaction answering method and path with status.
func NewInteraction(description, providerState, method, path string, status int) Interaction {
	return Interaction{
		Description:   description,
		ProviderState: providerState,
		Request:       contract.NewRequestExpectation(method, path),
		Response:      contract.ResponseExpectation{Status: status},
	}
}

// Expect wraps a request or response field value, which may contain matchers.
func Expect(v interface{}) contract.Field {
	return contract.Expect(v)
}

// Term matches strings against pattern and generates example.
func Term(example, pattern string) (Matcher, error) {
	term, err := matchers.NewTerm(example, pattern)
	if err != nil {
		return nil, err
	}
	return term, nil
}

// Like matches any value of the same type as example.
func Like(example interface{}) Matcher {
	return matchers.NewLike(example)
}
