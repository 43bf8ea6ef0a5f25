package main

import (
	"github.com/form3tech-oss/pact-mock-service/internal/app/configuration"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var controlPort int

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Run only the control API, which starts mock services on request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configuration.NewFromEnv()
		if err != nil {
			return err
		}
		if err := configuration.ConfigureLogging(config.LogLevel, config.LogFormat); err != nil {
			return err
		}

		port := controlPort
		if !cmd.Flags().Changed("port") && config.ControlPort > 0 {
			port = config.ControlPort
		}

		log.Infof("serving control API on port %d", port)
		controlServer := configuration.ServeControlAPI(port)

		waitForSignal()
		return shutdown(controlServer)
	},
}

func init() {
	controlCmd.Flags().IntVar(&controlPort, "port", 8080, "Port of the control API")
	rootCmd.AddCommand(controlCmd)
}
