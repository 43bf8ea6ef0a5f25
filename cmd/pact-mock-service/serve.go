package main

import (
	"context"
	"net/url"

	"github.com/form3tech-oss/pact-mock-service/internal/app/configuration"
	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	address     string
	consumer    string
	provider    string
	pactDir     string
	writeMode   string
	controlPort int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a mock service, writing its pact file on shutdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configuration.NewFromEnv()
		if err != nil {
			return err
		}
		if err := applyServeFlags(cmd, &config); err != nil {
			return err
		}
		if err := configuration.ConfigureLogging(config.LogLevel, config.LogFormat); err != nil {
			return err
		}

		log.Infof("setting up mock service for %s on %s", config.MockService.Provider, config.MockService.ServerAddress.String())
		if _, err := configuration.ConfigureMockService(config.MockService); err != nil {
			return err
		}

		var controlServer *echo.Echo
		if config.ControlPort > 0 {
			controlServer = configuration.ServeControlAPI(config.ControlPort)
		}

		waitForSignal()
		return shutdown(controlServer)
	},
}

func applyServeFlags(cmd *cobra.Command, config *configuration.Config) error {
	flags := cmd.Flags()
	if flags.Changed("address") {
		address, err := url.Parse(serveFlags.address)
		if err != nil {
			return errors.Wrap(err, "invalid address")
		}
		config.MockService.ServerAddress = *address
	}
	if flags.Changed("consumer") {
		config.MockService.Consumer = serveFlags.consumer
	}
	if flags.Changed("provider") {
		config.MockService.Provider = serveFlags.provider
	}
	if flags.Changed("pact-dir") {
		config.MockService.PactDir = serveFlags.pactDir
	}
	if flags.Changed("write-mode") {
		config.MockService.WriteMode = mockservice.WriteMode(serveFlags.writeMode)
	}
	if flags.Changed("control-port") {
		config.ControlPort = serveFlags.controlPort
	}
	return config.MockService.WriteMode.Validate()
}

func shutdown(controlServer *echo.Echo) error {
	log.Info("writing pacts and shutting down")
	err := configuration.WriteAllPacts()
	if controlServer != nil {
		if closeErr := controlServer.Close(); closeErr != nil {
			log.Error(closeErr)
		}
	}
	configuration.ShutdownAllServers(context.Background())
	return err
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveFlags.address, "address", "", "Address to listen on, overrides SERVER_ADDRESS")
	flags.StringVar(&serveFlags.consumer, "consumer", "", "Consumer name, overrides CONSUMER")
	flags.StringVar(&serveFlags.provider, "provider", "", "Provider name, overrides PROVIDER")
	flags.StringVar(&serveFlags.pactDir, "pact-dir", "", "Directory pact files are written to, overrides PACT_DIR")
	flags.StringVar(&serveFlags.writeMode, "write-mode", "", "Interactions written to the pact file, all or matched")
	flags.IntVar(&serveFlags.controlPort, "control-port", 0, "Port of the control API, overrides CONTROL_PORT")
	rootCmd.AddCommand(serveCmd)
}
