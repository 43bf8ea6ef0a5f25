package configuration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

type server struct {
	http    *http.Server
	service *mockservice.Service
	address string
}

var servers sync.Map

// StartServer serves the mock service on url's host. A path in url mounts the service under
// that prefix. Only one mock service may listen on a host.
func StartServer(url *url.URL, service *mockservice.Service) error {
	s := newServer(url, service)
	if _, loaded := servers.LoadOrStore(url.Host, s); loaded {
		return fmt.Errorf("mock service already running at %s", url.String())
	}

	go func() {
		err := s.http.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error(err)
			servers.Delete(url.Host)
		}
	}()
	return nil
}

func newServer(url *url.URL, service *mockservice.Service) *server {
	e := echo.New()
	e.HideBanner = true

	if prefix := strings.TrimRight(url.Path, "/"); prefix != "" {
		e.Pre(middleware.Rewrite(map[string]string{
			prefix + "/*": "/$1",
		}))
	}
	mockservice.SetupRoutes(e, service)

	return &server{
		http: &http.Server{
			Addr:    url.Host,
			Handler: e,
		},
		service: service,
		address: url.String(),
	}
}

// MockServices returns the running mock services keyed by address.
func MockServices() map[string]*mockservice.Service {
	services := map[string]*mockservice.Service{}
	servers.Range(func(_, v interface{}) bool {
		s := v.(*server)
		services[s.address] = s.service
		return true
	})
	return services
}

// WriteAllPacts writes the pact file of every running mock service that knows its consumer
// and provider.
func WriteAllPacts() error {
	var failed []string
	servers.Range(func(_, v interface{}) bool {
		s := v.(*server)
		config := s.service.Config()
		if config.Consumer == "" || config.Provider == "" {
			log.Debugf("not writing pact for %s, consumer or provider not configured", s.address)
			return true
		}
		_, path, err := s.service.WritePact(mockservice.PactDetails{})
		if err != nil {
			log.WithError(err).Errorf("unable to write pact for %s", s.address)
			failed = append(failed, s.address)
			return true
		}
		log.Infof("wrote pact file %s", path)
		return true
	})
	if len(failed) > 0 {
		return fmt.Errorf("unable to write pacts for %s", strings.Join(failed, ", "))
	}
	return nil
}

func ShutdownAllServers(ctx context.Context) {
	servers.Range(func(key, _ interface{}) bool {
		s, loaded := servers.LoadAndDelete(key)
		if loaded {
			if err := s.(*server).http.Shutdown(ctx); err != nil {
				log.Error(err)
			}
		}
		return true
	})
}
