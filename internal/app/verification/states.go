// Package verification replays contracts against a running provider.
package verification

import (
	"context"
	"sync"
)

// State sets a provider up for the interactions that are given it. Either hook may be nil.
type State struct {
	SetUp    func(ctx context.Context) error
	TearDown func(ctx context.Context) error
}

func (s State) setUp(ctx context.Context) error {
	if s.SetUp == nil {
		return nil
	}
	return s.SetUp(ctx)
}

func (s State) tearDown(ctx context.Context) error {
	if s.TearDown == nil {
		return nil
	}
	return s.TearDown(ctx)
}

// Resolver finds a state that was not registered by name.
type Resolver func(consumer, name string) (State, bool)

// ProviderStates holds the provider states known to one verification run. States
// registered for a consumer take precedence over global states of the same name.
type ProviderStates struct {
	mu       sync.RWMutex
	global   map[string]State
	consumer map[string]map[string]State
	fallback Resolver
}

func NewProviderStates() *ProviderStates {
	return &ProviderStates{
		global:   map[string]State{},
		consumer: map[string]map[string]State{},
	}
}

// Register adds a state available to every consumer.
func (p *ProviderStates) Register(name string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.global[name] = state
}

// RegisterFor adds a state only visible when verifying the consumer's contract.
func (p *ProviderStates) RegisterFor(consumer, name string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	states, ok := p.consumer[consumer]
	if !ok {
		states = map[string]State{}
		p.consumer[consumer] = states
	}
	states[name] = state
}

// SetFallback sets the resolver used for names that were not registered.
func (p *ProviderStates) SetFallback(resolver Resolver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = resolver
}

func (p *ProviderStates) Get(consumer, name string) (State, bool) {
	p.mu.RLock()
	if state, ok := p.consumer[consumer][name]; ok {
		p.mu.RUnlock()
		return state, true
	}
	if state, ok := p.global[name]; ok {
		p.mu.RUnlock()
		return state, true
	}
	fallback := p.fallback
	p.mu.RUnlock()

	if fallback != nil {
		return fallback(consumer, name)
	}
	return State{}, false
}
