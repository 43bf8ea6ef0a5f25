package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	actionSetUp    = "setup"
	actionTearDown = "teardown"
)

type stateChange struct {
	Consumer string   `json:"consumer"`
	State    string   `json:"state"`
	States   []string `json:"states"`
	Action   string   `json:"action"`
}

// StateChangeURL returns a resolver that sets up and tears down any state by posting it to
// the provider's state change endpoint.
func StateChangeURL(url string, timeout time.Duration) Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	return func(consumer, name string) (State, bool) {
		post := func(action string) func(ctx context.Context) error {
			return func(ctx context.Context) error {
				return postStateChange(ctx, client, url, stateChange{
					Consumer: consumer,
					State:    name,
					States:   []string{name},
					Action:   action,
				})
			}
		}
		return State{SetUp: post(actionSetUp), TearDown: post(actionTearDown)}, true
	}
}

func postStateChange(ctx context.Context, client *http.Client, url string, change stateChange) error {
	content, err := json.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "unable to marshal state change")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	log.WithField("action", change.Action).Debugf("changing provider state %q", change.State)
	res, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "unable to reach provider state change url")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return errors.Errorf("provider state change %s of %q failed with %d: %s", change.Action, change.State, res.StatusCode, body)
	}
	return nil
}
