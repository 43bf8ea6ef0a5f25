package configuration

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/form3tech-oss/pact-mock-service/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// ServeControlAPI starts the API used to create and remove mock services at runtime.
func ServeControlAPI(port int) *echo.Echo {
	controlServer := echo.New()
	controlServer.HideBanner = true

	controlServer.GET("/mock-services", getMockServicesHandler)
	controlServer.POST("/mock-services", postMockServicesHandler)
	controlServer.DELETE("/mock-services", deleteMockServicesHandler)

	go func() {
		address := fmt.Sprintf(":%d", port)
		if err := controlServer.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	return controlServer
}

func getMockServicesHandler(c echo.Context) error {
	addresses := make([]string, 0)
	for address := range MockServices() {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return c.JSON(http.StatusOK, addresses)
}

func postMockServicesHandler(c echo.Context) error {
	config := mockservice.Config{}
	err := c.Bind(&config)
	if err != nil {
		return c.JSON(
			http.StatusBadRequest,
			httpresponse.Wrap(err, "unable to parse mock service configuration"),
		)
	}

	log.Infof("setting up mock service for %s on %s", config.Provider, config.ServerAddress.String())

	_, err = ConfigureMockService(config)
	if err != nil {
		return c.JSON(
			http.StatusInternalServerError,
			httpresponse.Wrap(err, "unable to create mock service from configuration"),
		)
	}

	return c.NoContent(http.StatusNoContent)
}

func deleteMockServicesHandler(c echo.Context) error {
	log.Infof("writing pacts and closing all mock services")
	err := WriteAllPacts()
	ShutdownAllServers(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.Error(err.Error()))
	}
	return c.NoContent(http.StatusNoContent)
}
