// Package contract models consumer contracts and reads and writes them as pact files.
package contract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type ServiceConsumer struct {
	Name string `json:"name"`
}

type ServiceProvider struct {
	Name string `json:"name"`
}

// Contract is the ordered set of interactions between one consumer and one provider.
type Contract struct {
	Consumer     ServiceConsumer
	Provider     ServiceProvider
	Interactions []Interaction
}

var whitespace = regexp.MustCompile(`\s`)

var lower = cases.Lower(language.Und)

func filenamify(name string) string {
	return whitespace.ReplaceAllString(lower.String(name), "_")
}

// FileName derives the pact file name for a consumer and provider pair.
func FileName(consumer, provider string) string {
	return filenamify(consumer) + "-" + filenamify(provider) + ".json"
}

func (c Contract) FileName() (string, error) {
	if strings.TrimSpace(c.Consumer.Name) == "" || strings.TrimSpace(c.Provider.Name) == "" {
		return "", &ConfigurationError{Reason: "you must first specify a consumer and provider name"}
	}
	return FileName(c.Consumer.Name, c.Provider.Name), nil
}

// PactFilePath is the location of the contract's pact file within dir.
func (c Contract) PactFilePath(dir string) (string, error) {
	name, err := c.FileName()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (c Contract) FindInteractions(criteria Criteria) []Interaction {
	var found []Interaction
	for _, i := range c.Interactions {
		if i.MatchesCriteria(criteria) {
			found = append(found, i)
		}
	}
	return found
}

// FindInteraction returns the single interaction matching criteria.
func (c Contract) FindInteraction(criteria Criteria) (Interaction, error) {
	found := c.FindInteractions(criteria)
	switch len(found) {
	case 0:
		return Interaction{}, errors.Errorf("could not find interaction matching %s in pact file between %s and %s",
			criteria, c.Consumer.Name, c.Provider.Name)
	case 1:
		return found[0], nil
	}
	return Interaction{}, errors.Errorf("found more than 1 interaction matching %s in pact file between %s and %s",
		criteria, c.Consumer.Name, c.Provider.Name)
}
