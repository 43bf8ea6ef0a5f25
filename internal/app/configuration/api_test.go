package configuration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/form3tech-oss/pact-mock-service/internal/app/mockservice"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callControlHandler(t *testing.T, handler echo.HandlerFunc, method string, body interface{}) *httptest.ResponseRecorder {
	var content []byte
	if body != nil {
		var err error
		content, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, "/mock-services", bytes.NewReader(content))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	require.NoError(t, handler(c))
	return rec
}

func TestControlAPI(t *testing.T) {
	defer ShutdownAllServers(context.Background())

	serverAddr, err := getFreePortURL()
	require.NoError(t, err)

	config := mockservice.Config{
		ServerAddress: *serverAddr,
		Consumer:      "Zoo App",
		Provider:      "Animal Service",
		PactDir:       t.TempDir(),
	}
	rec := callControlHandler(t, postMockServicesHandler, http.MethodPost, config)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = callControlHandler(t, postMockServicesHandler, http.MethodPost, config)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, "address already in use")

	rec = callControlHandler(t, getMockServicesHandler, http.MethodGet, nil)
	var addresses []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &addresses))
	assert.Equal(t, []string{serverAddr.String()}, addresses)

	rec = callControlHandler(t, deleteMockServicesHandler, http.MethodDelete, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.FileExists(t, config.PactDir+"/zoo_app-animal_service.json")
	assert.Empty(t, MockServices())
}

func TestControlAPIRejectsInvalidConfiguration(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mock-services", bytes.NewReader([]byte(`{"WaitDelay": "soon"}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, postMockServicesHandler(echo.New().NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
