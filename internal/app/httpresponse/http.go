package httpresponse

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// APIError is the JSON body of every administrative error response.
type APIError struct {
	ErrorMessage string `json:"error"`
}

func (e *APIError) Error() string {
	return e.ErrorMessage
}

func Error(message string) *APIError {
	log.WithField("error", message).Error("request failed")
	return &APIError{ErrorMessage: message}
}

func Errorf(format string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(format, a...))
}

// Wrap reports err after message, e.g. "unable to load interaction. <err>".
func Wrap(err error, message string) *APIError {
	return Errorf("%s. %s", message, err.Error())
}
