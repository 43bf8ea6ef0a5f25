package mockservice

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/httpresponse"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

func (s *Service) adminRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/ready", s.readinessHandler)
	e.GET("/interactions", s.listInteractionsHandler)
	e.POST("/interactions", s.addInteractionHandler)
	e.PUT("/interactions", s.setInteractionsHandler)
	e.DELETE("/interactions", s.clearInteractionsHandler)
	e.POST("/interactions/reset", s.resetInteractionsHandler)
	e.GET("/interactions/wait", s.interactionsWaitHandler)
	e.GET("/interactions/verification", s.verifyHandler)
	e.GET("/verify", s.verifyHandler)
	e.GET("/number_of_missing_interactions", s.missingInteractionsHandler)
	e.GET("/log", s.logHandler)
	e.POST("/pact", s.pactHandler)
	return e
}

func (s *Service) readinessHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

type entryView struct {
	Description   string  `json:"description"`
	ProviderState *string `json:"provider_state"`
	Request       string  `json:"request"`
	Status        Status  `json:"status"`
	Requests      int     `json:"requests"`
}

func (s *Service) listInteractionsHandler(c echo.Context) error {
	entries := s.interactions.All()
	views := make([]entryView, len(entries))
	for n, e := range entries {
		views[n] = entryView{
			Description:   e.Interaction.Description,
			ProviderState: providerState(e.Interaction),
			Request:       e.Interaction.Request.ShortDescription(),
			Status:        e.Status,
			Requests:      e.Requests,
		}
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Service) addInteractionHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Wrap(err, "unable to read interaction"))
	}

	interaction, err := contract.ParseInteraction(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Wrap(err, "unable to load interaction"))
	}

	log.Infof("registered expected interaction %s", interaction.Request.ShortDescription())
	log.Debugf("storing interaction '%s'", interaction.Key())
	s.interactions.Register(interaction)
	return c.String(http.StatusOK, "Added interaction")
}

// setInteractionsHandler replaces every registered interaction with the "interactions" list
// of the request body.
func (s *Service) setInteractionsHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Wrap(err, "unable to read interactions"))
	}
	list := gjson.GetBytes(data, "interactions")
	if !list.IsArray() {
		return c.JSON(http.StatusBadRequest, httpresponse.Error("unable to load interactions. interactions must be an array"))
	}

	var interactions []contract.Interaction
	var parseErr error
	list.ForEach(func(_, value gjson.Result) bool {
		var interaction contract.Interaction
		interaction, parseErr = contract.ParseInteraction([]byte(value.Raw))
		if parseErr != nil {
			return false
		}
		interactions = append(interactions, interaction)
		return true
	})
	if parseErr != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Wrap(parseErr, "unable to load interactions"))
	}

	s.interactions.Clear()
	for _, interaction := range interactions {
		s.interactions.Register(interaction)
	}
	log.Infof("set %d interactions%s", len(interactions), example(c))
	return c.String(http.StatusOK, "Set interactions")
}

func (s *Service) clearInteractionsHandler(c echo.Context) error {
	s.interactions.Clear()
	log.Infof("cleared interactions%s", example(c))
	return c.String(http.StatusOK, "Cleared interactions")
}

func (s *Service) resetInteractionsHandler(c echo.Context) error {
	s.interactions.ResetCycle()
	log.Infof("reset interactions%s", example(c))
	return c.String(http.StatusOK, "Reset interactions")
}

func example(c echo.Context) string {
	if description := c.QueryParam("example_description"); description != "" {
		return " before example \"" + description + "\""
	}
	return ""
}

func (s *Service) interactionsWaitHandler(c echo.Context) error {
	waitForCount, err := strconv.Atoi(c.QueryParam("count"))
	if err != nil {
		waitForCount = 1
	}

	if waitFor := c.QueryParam("interaction"); waitFor != "" {
		if _, ok := s.interactions.Load(waitFor); !ok {
			return c.JSON(http.StatusBadRequest,
				httpresponse.Errorf("cannot wait for interaction '%s', interaction not found.", waitFor))
		}

		hasRequests := func() bool {
			entry, ok := s.interactions.Load(waitFor)
			return ok && entry.Requests >= waitForCount
		}

		log.WithField("wait_for", waitFor).Infof("waiting")
		ok := retryFor(func(timeLeft time.Duration) bool {
			log.WithFields(log.Fields{
				"wait_for":       waitFor,
				"count":          waitForCount,
				"time_remaining": timeLeft,
			}).Debug("retry")
			if hasRequests() {
				return true
			}
			if timeLeft > 0 {
				s.matched.Wait(timeLeft)
			}
			return false
		}, s.config.WaitDelay, s.config.WaitDuration)

		if !ok && !hasRequests() {
			return c.JSON(http.StatusRequestTimeout, httpresponse.Error("timeout waiting for interactions to be met"))
		}
		return c.NoContent(http.StatusOK)
	}

	log.Info("waiting for all")
	ok := retryFor(func(timeLeft time.Duration) bool {
		if s.interactions.MissingCount() == 0 {
			return true
		}
		if timeLeft > 0 {
			s.matched.Wait(timeLeft)
		}
		return false
	}, s.config.WaitDelay, s.config.WaitDuration)

	if !ok && s.interactions.MissingCount() > 0 {
		for _, e := range s.interactions.All() {
			if e.Status != Matched {
				log.Infof("'%s' has no requests", e.Interaction.Description)
			}
		}
		return c.JSON(http.StatusRequestTimeout, httpresponse.Error("timeout waiting for interactions to be met"))
	}
	return c.NoContent(http.StatusOK)
}

func (s *Service) verifyHandler(c echo.Context) error {
	if err := s.interactions.Verify(); err != nil {
		log.Errorf("verifying%s: %s", example(c), err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	log.Infof("verified interactions%s", example(c))
	return c.String(http.StatusOK, "Interactions matched")
}

func (s *Service) missingInteractionsHandler(c echo.Context) error {
	return c.String(http.StatusOK, strconv.Itoa(s.interactions.MissingCount()))
}

func (s *Service) logHandler(c echo.Context) error {
	log.Info(c.QueryParam("msg"))
	return c.NoContent(http.StatusOK)
}

// PactDetails overrides the configured names and directory when writing the pact file.
type PactDetails struct {
	Consumer contract.ServiceConsumer `json:"consumer"`
	Provider contract.ServiceProvider `json:"provider"`
	PactDir  string                   `json:"pact_dir"`
}

func (s *Service) pactHandler(c echo.Context) error {
	var details PactDetails
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&details); err != nil {
			return c.JSON(http.StatusBadRequest, httpresponse.Wrap(err, "unable to parse pact details"))
		}
	}

	pact, path, err := s.WritePact(details)
	if err != nil {
		var configErr *contract.ConfigurationError
		if errors.As(err, &configErr) {
			return c.JSON(http.StatusBadRequest, httpresponse.Error(err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, httpresponse.Wrap(err, "unable to write pact"))
	}

	log.Infof("wrote pact file %s", path)
	return c.JSON(http.StatusOK, pact)
}

// WritePact writes the recorded interactions to the pact file selected by the write mode.
func (s *Service) WritePact(details PactDetails) (contract.Contract, string, error) {
	pact := contract.Contract{
		Consumer:     contract.ServiceConsumer{Name: s.config.Consumer},
		Provider:     contract.ServiceProvider{Name: s.config.Provider},
		Interactions: s.interactions.Recorded(s.config.WriteMode),
	}
	if details.Consumer.Name != "" {
		pact.Consumer = details.Consumer
	}
	if details.Provider.Name != "" {
		pact.Provider = details.Provider
	}
	dir := s.config.PactDir
	if details.PactDir != "" {
		dir = details.PactDir
	}

	path, err := contract.WriteToDir(pact, dir)
	if err != nil {
		return contract.Contract{}, "", err
	}
	return pact, path, nil
}
