package mockservice

import (
	"strings"
	"sync"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
)

type Status int

const (
	Unmatched Status = iota
	Matched
	// Ambiguous marks an interaction that matched a request together with another interaction.
	// The request was rejected so the interaction still counts as missing.
	Ambiguous
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "matched"
	case Ambiguous:
		return "ambiguous"
	}
	return "unmatched"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is a registered interaction with its outcome in the current cycle.
type Entry struct {
	Interaction contract.Interaction
	Status      Status
	// Requests counts the requests the interaction answered in the current cycle.
	Requests int
}

type recorded struct {
	interaction contract.Interaction
	matched     bool
}

// Interactions is the registry of expected interactions. Every read and write holds the same
// mutex; Match holds it for the whole candidate lookup, diff and bookkeeping sequence.
type Interactions struct {
	mu         sync.Mutex
	entries    []*Entry
	unexpected []contract.ActualRequest
	// every interaction registered during the registry's lifetime, kept across Clear
	recorded []*recorded
}

// Register adds an interaction in the Unmatched state. An interaction with the same
// description and provider state is replaced in place.
func (i *Interactions) Register(interaction contract.Interaction) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := interaction.Key()
	entry := &Entry{Interaction: interaction}
	replaced := false
	for n, e := range i.entries {
		if e.Interaction.Key() == key {
			i.entries[n] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		i.entries = append(i.entries, entry)
	}

	for _, r := range i.recorded {
		if r.interaction.Key() == key {
			r.interaction = interaction
			return
		}
	}
	i.recorded = append(i.recorded, &recorded{interaction: interaction})
}

// FindCandidates returns the entries whose method and path match the request, ignoring
// headers, query and body.
func (i *Interactions) FindCandidates(actual contract.ActualRequest) []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var candidates []Entry
	for _, e := range i.candidates(actual) {
		candidates = append(candidates, *e)
	}
	return candidates
}

func (i *Interactions) candidates(actual contract.ActualRequest) []*Entry {
	var candidates []*Entry
	for _, e := range i.entries {
		if e.Interaction.Request.MatchesRoute(actual) {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

// nearCandidates reports the entries sharing the request's method by their route difference.
// They are diagnostics only and never answer the request.
func (i *Interactions) nearCandidates(actual contract.ActualRequest) []InteractionDiff {
	diffs := make([]InteractionDiff, 0)
	for _, e := range i.entries {
		if !strings.EqualFold(e.Interaction.Request.Method, actual.Method) {
			continue
		}
		diffs = append(diffs, InteractionDiff{
			Description:   e.Interaction.Description,
			ProviderState: providerState(e.Interaction),
			Differences:   e.Interaction.Request.RouteDifference(actual),
		})
	}
	return diffs
}

// Match selects the single interaction fully matching the request and records it as matched.
// It returns a *NoMatchError when nothing matches and an *AmbiguousMatchError when several
// interactions do; both are also logged as unexpected requests. When no interaction shares the
// request's route the NoMatchError lists those sharing its method instead.
func (i *Interactions) Match(actual contract.ActualRequest) (contract.Interaction, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	candidates := i.candidates(actual)
	var matching []*Entry
	diffs := make([]InteractionDiff, 0, len(candidates))
	for _, e := range candidates {
		d := e.Interaction.Request.Difference(actual)
		if d.Empty() {
			matching = append(matching, e)
			continue
		}
		diffs = append(diffs, InteractionDiff{
			Description:   e.Interaction.Description,
			ProviderState: providerState(e.Interaction),
			Differences:   d,
		})
	}

	switch len(matching) {
	case 0:
		if len(candidates) == 0 {
			diffs = i.nearCandidates(actual)
		}
		i.unexpected = append(i.unexpected, actual)
		return contract.Interaction{}, &NoMatchError{Request: actual, Candidates: diffs}
	case 1:
		i.recordMatched(matching[0])
		return matching[0].Interaction, nil
	}

	i.unexpected = append(i.unexpected, actual)
	ambiguous := make([]contract.Interaction, len(matching))
	for n, e := range matching {
		if e.Status != Matched {
			e.Status = Ambiguous
		}
		ambiguous[n] = e.Interaction
	}
	return contract.Interaction{}, &AmbiguousMatchError{Request: actual, Matching: ambiguous}
}

// RecordMatched marks the interaction with key as matched. Matching again is allowed.
func (i *Interactions) RecordMatched(key contract.Key) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, e := range i.entries {
		if e.Interaction.Key() == key {
			i.recordMatched(e)
			return true
		}
	}
	return false
}

func (i *Interactions) recordMatched(e *Entry) {
	e.Status = Matched
	e.Requests++
	for _, r := range i.recorded {
		if r.interaction.Key() == e.Interaction.Key() {
			r.matched = true
		}
	}
}

func (i *Interactions) RecordUnexpected(actual contract.ActualRequest) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.unexpected = append(i.unexpected, actual)
}

// MissingCount is the number of registered interactions not matched in the current cycle.
func (i *Interactions) MissingCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	count := 0
	for _, e := range i.entries {
		if e.Status != Matched {
			count++
		}
	}
	return count
}

// Load returns the entry registered with the given description.
func (i *Interactions) Load(description string) (Entry, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, e := range i.entries {
		if e.Interaction.Description == description {
			return *e, true
		}
	}
	return Entry{}, false
}

// ResetCycle returns every entry to Unmatched and forgets unexpected requests.
func (i *Interactions) ResetCycle() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, e := range i.entries {
		e.Status = Unmatched
		e.Requests = 0
	}
	i.unexpected = nil
}

// Clear removes every entry and unexpected request. Interactions already recorded for the
// pact file are kept.
func (i *Interactions) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = nil
	i.unexpected = nil
}

func (i *Interactions) All() []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	all := make([]Entry, len(i.entries))
	for n, e := range i.entries {
		all[n] = *e
	}
	return all
}

func (i *Interactions) Unexpected() []contract.ActualRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]contract.ActualRequest(nil), i.unexpected...)
}

// Verify returns a *VerificationError unless every entry matched and no unexpected request
// arrived in the current cycle.
func (i *Interactions) Verify() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	var missing []contract.Interaction
	for _, e := range i.entries {
		if e.Status != Matched {
			missing = append(missing, e.Interaction)
		}
	}
	if len(missing) == 0 && len(i.unexpected) == 0 {
		return nil
	}
	return &VerificationError{
		Missing:    missing,
		Unexpected: append([]contract.ActualRequest(nil), i.unexpected...),
	}
}

// Recorded returns the interactions to write to the pact file, in registration order.
func (i *Interactions) Recorded(mode WriteMode) []contract.Interaction {
	i.mu.Lock()
	defer i.mu.Unlock()

	var out []contract.Interaction
	for _, r := range i.recorded {
		if mode == WriteMatched && !r.matched {
			continue
		}
		out = append(out, r.interaction)
	}
	return out
}
