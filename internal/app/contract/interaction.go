package contract

import "fmt"

type Interaction struct {
	Description string
	// ProviderState is empty when the interaction has no provider state.
	ProviderState string
	Request       RequestExpectation
	Response      ResponseExpectation
}

// Key identifies an interaction; registering a second interaction with the same key replaces
// the first.
type Key struct {
	Description   string
	ProviderState string
}

func (i Interaction) Key() Key {
	return Key{Description: i.Description, ProviderState: i.ProviderState}
}

func (k Key) String() string {
	if k.ProviderState == "" {
		return k.Description
	}
	return fmt.Sprintf("%s given %s", k.Description, k.ProviderState)
}

// Criteria selects interactions; empty fields match anything.
type Criteria struct {
	Description   string
	ProviderState string
}

func (i Interaction) MatchesCriteria(c Criteria) bool {
	if c.Description != "" && c.Description != i.Description {
		return false
	}
	if c.ProviderState != "" && c.ProviderState != i.ProviderState {
		return false
	}
	return true
}

func (c Criteria) String() string {
	return fmt.Sprintf("{description: %q, provider_state: %q}", c.Description, c.ProviderState)
}
