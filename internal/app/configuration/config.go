package configuration

import (
	"context"

	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	MockService mockservice.Config
	ControlPort int    `env:"CONTROL_PORT"`            // Port of the control API, 0 disables it
	LogLevel    string `env:"LOG_LEVEL,default=info"`  // logrus level name
	LogFormat   string `env:"LOG_FORMAT,default=text"` // text or json
}

func NewFromEnv() (Config, error) {
	return newFromLookuper(envconfig.OsLookuper())
}

func newFromLookuper(l envconfig.Lookuper) (Config, error) {
	ctx := context.Background()

	var config Config
	err := envconfig.ProcessWith(ctx, &config, l)
	if err != nil {
		return config, errors.Wrap(err, "process env config")
	}
	if err := config.MockService.WriteMode.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func ConfigureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return errors.Errorf("invalid log format %q", format)
	}
	return nil
}

// ConfigureMockService starts a mock service on the configured address.
func ConfigureMockService(config mockservice.Config) (*mockservice.Service, error) {
	if err := config.WriteMode.Validate(); err != nil {
		return nil, err
	}

	service := mockservice.New(config)
	if err := StartServer(&config.ServerAddress, service); err != nil {
		return nil, err
	}
	return service, nil
}
