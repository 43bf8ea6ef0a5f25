package mockservice

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ControlConfiguration starts and stops mock services through the control API.
type ControlConfiguration struct {
	client http.Client
	url    string
}

func Configuration(url string) *ControlConfiguration {
	return &ControlConfiguration{
		client: http.Client{
			Timeout: 30 * time.Second,
		},
		url: strings.TrimSuffix(url, "/"),
	}
}

// SetupMockService starts a mock service for the consumer and provider on serverAddress.
func (conf *ControlConfiguration) SetupMockService(serverAddress, consumer, provider string) (*MockService, error) {
	serverURL, err := url.Parse(serverAddress)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse server address")
	}

	config := &Config{
		ServerAddress: *serverURL,
		Consumer:      consumer,
		Provider:      provider,
	}
	return conf.SetupMockServiceWithConfig(config)
}

func (conf *ControlConfiguration) SetupMockServiceWithConfig(config *Config) (*MockService, error) {
	content, err := json.Marshal(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal config")
	}

	req, err := http.NewRequest(http.MethodPost, conf.url+"/mock-services", bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := conf.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.New(string(responseBody))
	}
	return New(config.ServerAddress.String()), nil
}

// Reset writes the pacts of every mock service and stops them.
func (conf *ControlConfiguration) Reset() error {
	req, err := http.NewRequest(http.MethodDelete, conf.url+"/mock-services", nil)
	if err != nil {
		return err
	}

	res, err := conf.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return errors.Errorf("error resetting mock services. %s", body)
	}
	return nil
}

// MockServices lists the addresses of the running mock services.
func (conf *ControlConfiguration) MockServices() ([]string, error) {
	res, err := conf.client.Get(conf.url + "/mock-services")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var addresses []string
	if err := json.NewDecoder(res.Body).Decode(&addresses); err != nil {
		return nil, errors.Wrap(err, "failed to parse mock services")
	}
	return addresses, nil
}
