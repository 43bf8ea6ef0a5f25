package main

import (
	"context"
	"fmt"
	"time"

	"github.com/form3tech-oss/pact-mock-service/internal/app/configuration"
	"github.com/form3tech-oss/pact-mock-service/internal/app/verification"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var verifyFlags struct {
	configFile             string
	providerBaseURL        string
	pactURLs               []string
	providerStatesSetupURL string
	timeout                time.Duration
	description            string
	providerState          string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay pacts against a running provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := configuration.NewFromEnv()
		if err != nil {
			return err
		}
		if err := configuration.ConfigureLogging(env.LogLevel, env.LogFormat); err != nil {
			return err
		}

		config := verification.Config{}
		if verifyFlags.configFile != "" {
			if config, err = verification.LoadConfig(verifyFlags.configFile); err != nil {
				return err
			}
		}
		applyVerifyFlags(cmd, &config)

		reports, err := verification.Verify(context.Background(), config, verification.NewProviderStates())
		for _, report := range reports {
			fmt.Fprint(cmd.OutOrStdout(), report.String())
		}
		if err != nil {
			return err
		}

		failures := 0
		for _, report := range reports {
			failures += report.Failures()
		}
		if failures > 0 {
			return errors.Errorf("%d interactions failed verification", failures)
		}
		return nil
	},
}

func applyVerifyFlags(cmd *cobra.Command, config *verification.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider-base-url") {
		config.ProviderBaseURL = verifyFlags.providerBaseURL
	}
	if flags.Changed("pact-url") {
		config.PactURLs = verifyFlags.pactURLs
	}
	if flags.Changed("provider-states-setup-url") {
		config.ProviderStatesSetupURL = verifyFlags.providerStatesSetupURL
	}
	if flags.Changed("timeout") {
		config.Timeout = verifyFlags.timeout
	}
	if flags.Changed("description") {
		config.Description = verifyFlags.description
	}
	if flags.Changed("provider-state") {
		config.ProviderState = verifyFlags.providerState
	}
}

func init() {
	flags := verifyCmd.Flags()
	flags.StringVarP(&verifyFlags.configFile, "config", "c", "", "YAML verification config file")
	flags.StringVar(&verifyFlags.providerBaseURL, "provider-base-url", "", "Base URL of the provider")
	flags.StringArrayVar(&verifyFlags.pactURLs, "pact-url", nil, "Pact file, glob pattern or http url, may be repeated")
	flags.StringVar(&verifyFlags.providerStatesSetupURL, "provider-states-setup-url", "", "URL that provider state changes are posted to")
	flags.DurationVar(&verifyFlags.timeout, "timeout", 0, "Timeout of each request to the provider")
	flags.StringVar(&verifyFlags.description, "description", "", "Only verify interactions with this description")
	flags.StringVar(&verifyFlags.providerState, "provider-state", "", "Only verify interactions with this provider state")
	rootCmd.AddCommand(verifyCmd)
}
