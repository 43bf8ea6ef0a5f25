package mockservice

import (
	"encoding/json"
	"fmt"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/differ"
)

// InteractionDiff explains why a candidate interaction did not match a request.
type InteractionDiff struct {
	Description   string             `json:"description"`
	ProviderState *string            `json:"provider_state"`
	Differences   differ.Differences `json:"differences"`
}

// NoMatchError is returned when no registered interaction matches a request. Candidates holds
// the interactions whose route matched, with their differences.
type NoMatchError struct {
	Request    contract.ActualRequest
	Candidates []InteractionDiff
}

func (e *NoMatchError) Error() string {
	return "No interaction found for " + e.Request.MethodAndPath()
}

func (e *NoMatchError) MarshalJSON() ([]byte, error) {
	diffs := e.Candidates
	if diffs == nil {
		diffs = []InteractionDiff{}
	}
	return json.Marshal(struct {
		Message          string            `json:"message"`
		InteractionDiffs []InteractionDiff `json:"interaction_diffs"`
	}{e.Error(), diffs})
}

// AmbiguousMatchError is returned when more than one registered interaction matches a request.
type AmbiguousMatchError struct {
	Request  contract.ActualRequest
	Matching []contract.Interaction
}

func (e *AmbiguousMatchError) Error() string {
	return "Multiple interaction found for " + e.Request.MethodAndPath()
}

type matchingInteraction struct {
	Description   string                      `json:"description"`
	ProviderState *string                     `json:"provider_state"`
	Request       contract.RequestExpectation `json:"request"`
}

func (e *AmbiguousMatchError) MarshalJSON() ([]byte, error) {
	matching := make([]matchingInteraction, len(e.Matching))
	for n, i := range e.Matching {
		matching[n] = matchingInteraction{
			Description:   i.Description,
			ProviderState: providerState(i),
			Request:       i.Request,
		}
	}
	return json.Marshal(struct {
		Message              string                `json:"message"`
		MatchingInteractions []matchingInteraction `json:"matching_interactions"`
	}{e.Error(), matching})
}

func providerState(i contract.Interaction) *string {
	if i.ProviderState == "" {
		return nil
	}
	state := i.ProviderState
	return &state
}

// VerificationError lists the interactions still missing and the unexpected requests received
// in the current cycle.
type VerificationError struct {
	Missing    []contract.Interaction
	Unexpected []contract.ActualRequest
}

func (e *VerificationError) Error() string {
	msg := "Actual interactions do not match expected interactions for mock service.\n"
	if len(e.Missing) > 0 {
		msg += "\nMissing requests:\n"
		for _, i := range e.Missing {
			msg += fmt.Sprintf("\t%s\n", i.Request.ShortDescription())
		}
	}
	if len(e.Unexpected) > 0 {
		msg += "\nUnexpected requests:\n"
		for _, r := range e.Unexpected {
			msg += fmt.Sprintf("\t%s\n", r.MethodAndPath())
		}
	}
	return msg
}
