package mockservice

import (
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultDelay    = 100 * time.Millisecond
	defaultDuration = 3 * time.Second
	defaultPactDir  = "./pacts"
)

// WriteMode selects which interactions are written to the pact file.
type WriteMode string

const (
	// WriteAll writes every interaction registered during the service's lifetime.
	WriteAll WriteMode = "all"
	// WriteMatched writes only interactions that received at least one matching request.
	WriteMatched WriteMode = "matched"
)

func (m WriteMode) Validate() error {
	switch m {
	case WriteAll, WriteMatched, "":
		return nil
	}
	return errors.Errorf("unknown pact write mode %q", m)
}

type Config struct {
	ServerAddress url.URL       `env:"SERVER_ADDRESS,default=http://localhost:1234"` // Address to listen on
	Name          string        `env:"SERVICE_NAME"`                                 // Name used in logs, defaults to the provider
	Consumer      string        `env:"CONSUMER"`                                     // Consumer name written to the pact file
	Provider      string        `env:"PROVIDER"`                                     // Provider name written to the pact file
	PactDir       string        `env:"PACT_DIR,default=./pacts"`                     // Directory pact files are written to
	WriteMode     WriteMode     `env:"PACT_WRITE_MODE,default=all"`                  // Interactions written to the pact file
	WaitDelay     time.Duration `env:"WAIT_DELAY"`                                   // Default Delay for WaitForInteractions endpoint
	WaitDuration  time.Duration `env:"WAIT_DURATION"`                                // Default Duration for WaitForInteractions endpoint
}

func (c Config) name() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Provider != "":
		return c.Provider
	}
	return "mock service"
}
