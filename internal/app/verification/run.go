package verification

import (
	"context"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Verify reads every pact the config names and verifies it against the provider. A pact
// that cannot be read stops the run; failed interactions are reported, not returned as
// errors.
func Verify(ctx context.Context, config Config, states *ProviderStates) ([]Report, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	uris, err := config.ExpandPactURLs()
	if err != nil {
		return nil, err
	}

	if states == nil {
		states = NewProviderStates()
	}
	if config.ProviderStatesSetupURL != "" {
		states.SetFallback(StateChangeURL(config.ProviderStatesSetupURL, config.Timeout))
	}

	verifier := NewVerifier(config.ProviderBaseURL, states, config.Timeout)
	criteria := contract.Criteria{Description: config.Description, ProviderState: config.ProviderState}

	reports := make([]Report, 0, len(uris))
	for _, uri := range uris {
		log.Infof("verifying pact %s against %s", uri, config.ProviderBaseURL)
		c, err := contract.Read(uri)
		if err != nil {
			return reports, errors.Wrapf(err, "unable to read pact %s", uri)
		}
		reports = append(reports, verifier.VerifyContract(ctx, c, criteria))
	}
	return reports, nil
}
