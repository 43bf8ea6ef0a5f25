// Package mockservice serves registered interactions to a consumer under test.
//
// Business requests are matched against the interaction registry and answered with the
// matching interaction's response. Requests carrying the AdminHeader are routed to the
// administrative API instead, so a consumer route such as /verify never collides with it.
package mockservice

import (
	"net/http"

	"github.com/form3tech-oss/pact-mock-service/internal/app/contract"
	"github.com/form3tech-oss/pact-mock-service/internal/app/httpresponse"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AdminHeader marks a request for the administrative API.
const AdminHeader = "X-Pact-Mock-Service"

type Service struct {
	config       Config
	interactions *Interactions
	matched      *matchSignal
	admin        *echo.Echo
}

func New(config Config) *Service {
	if config.WaitDelay == 0 {
		config.WaitDelay = defaultDelay
	}
	if config.WaitDuration == 0 {
		config.WaitDuration = defaultDuration
	}
	if config.WriteMode == "" {
		config.WriteMode = WriteAll
	}
	if config.PactDir == "" {
		config.PactDir = defaultPactDir
	}

	s := &Service{
		config:       config,
		interactions: &Interactions{},
		matched:      newMatchSignal(),
	}
	s.admin = s.adminRoutes()
	return s
}

func (s *Service) Config() Config {
	return s.config
}

func (s *Service) Interactions() *Interactions {
	return s.interactions
}

// SetupRoutes installs the service on e: administrative requests are dispatched before
// routing, everything else is replayed.
func SetupRoutes(e *echo.Echo, s *Service) {
	e.Pre(s.adminDispatch)
	e.Use(middleware.Recover())
	e.Any("/*", s.replayHandler)
}

func (s *Service) adminDispatch(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(AdminHeader) != "true" {
			return next(c)
		}
		s.admin.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func (s *Service) replayHandler(c echo.Context) error {
	actual, err := parseActualRequest(c.Request())
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Wrap(err, "unable to read request"))
	}

	logger := log.WithFields(log.Fields{
		"request_id": uuid.NewString(),
		"method":     actual.Method,
		"path":       actual.Path,
	})
	logger.Infof("%s received request %s", s.config.name(), actual.MethodAndPath())

	interaction, err := s.interactions.Match(actual)
	if err != nil {
		var noMatch *NoMatchError
		if errors.As(err, &noMatch) {
			logger.WithField("candidates", len(noMatch.Candidates)).Errorf("no interaction found for %s", actual.MethodAndPath())
			for _, candidate := range noMatch.Candidates {
				logger.Errorf("'%s' differs:\n%s", candidate.Description, candidate.Differences)
			}
			return c.JSON(http.StatusInternalServerError, noMatch)
		}

		var ambiguous *AmbiguousMatchError
		if errors.As(err, &ambiguous) {
			logger.WithField("candidates", len(ambiguous.Matching)).Errorf("multiple interactions found for %s", actual.MethodAndPath())
			return c.JSON(http.StatusInternalServerError, ambiguous)
		}
		return err
	}

	s.matched.Broadcast()
	logger.WithFields(log.Fields{
		"description": interaction.Description,
		"status":      interaction.Response.Status,
	}).Info("found matching response")
	return writeResponse(c, interaction.Response)
}

func writeResponse(c echo.Context, response contract.ResponseExpectation) error {
	body, raw, err := response.GeneratedBody()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.Wrap(err, "unable to render response"))
	}

	header := c.Response().Header()
	for name, value := range response.GeneratedHeaders() {
		header.Set(name, value)
	}
	if body != nil && !raw && header.Get(echo.HeaderContentType) == "" {
		header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	c.Response().WriteHeader(response.Status)
	if body == nil {
		return nil
	}
	_, err = c.Response().Write(body)
	return err
}
