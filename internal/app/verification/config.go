package verification

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes a verification run. It is usually read from a YAML file and then
// overridden by command line flags.
type Config struct {
	ProviderBaseURL        string        `yaml:"provider_base_url"`
	PactURLs               []string      `yaml:"pact_urls"`
	ProviderStatesSetupURL string        `yaml:"provider_states_setup_url"`
	Timeout                time.Duration `yaml:"timeout"`
	Description            string        `yaml:"description"`
	ProviderState          string        `yaml:"provider_state"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to read verification config %s", path)
	}

	config := Config{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrapf(err, "unable to parse verification config %s", path)
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.ProviderBaseURL == "" {
		return errors.New("provider base url is required")
	}
	if len(c.PactURLs) == 0 {
		return errors.New("at least one pact url is required")
	}
	return nil
}

// ExpandPactURLs resolves glob patterns in the configured pact urls. HTTP urls are kept as
// they are; each pattern must match at least one file.
func (c Config) ExpandPactURLs() ([]string, error) {
	var expanded []string
	for _, pattern := range c.PactURLs {
		if isRemote(pattern) {
			expanded = append(expanded, pattern)
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pact url pattern %s", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.Errorf("no pact files found matching %s", pattern)
		}
		sort.Strings(matches)
		expanded = append(expanded, matches...)
	}
	return expanded, nil
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}
