package session

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/jrsteele09/go-portal/apiclient"
	perrors "github.com/jrsteele09/go-portal/internal/errors"
)

var (
	ErrInvalidCredentials = perrors.ErrInvalidCredentials
	ErrValidation         = perrors.ErrValidation
	ErrSessionExpired     = perrors.ErrSessionExpired
	ErrSessionNotFound    = perrors.ErrSessionNotFound
	ErrServer             = perrors.ErrServer
	ErrMalformedResponse  = perrors.ErrMalformedResponse
	ErrTimeout            = perrors.ErrTimeout
	ErrNetwork            = perrors.ErrNetwork
)

const (
	msgInvalidCredentials = "Invalid email or password."
	msgSessionExpired     = "Your session has expired. Please sign in again."
	msgValidation         = "Please correct the highlighted fields."
	msgServer             = "Something went wrong on our side. Please try again."
	msgTimeout            = "The server took too long to respond. Please try again."
	msgNetwork            = "Unable to reach the server. Check your connection and try again."
	msgUnknown            = "Something went wrong. Please try again."
)

// backend payload names mapped to form field names
var backendFieldNames = map[string]string{
	"fName": "firstName",
	"lName": "lastName",
}

// UserMessage turns any error returned by the Manager into text fit for the UI
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return msgInvalidCredentials
	case errors.Is(err, ErrSessionExpired):
		return msgSessionExpired
	case errors.Is(err, ErrMalformedResponse):
		return msgServer
	case errors.Is(err, ErrValidation):
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return msgValidation
	case errors.Is(err, ErrTimeout):
		return msgTimeout
	case errors.Is(err, ErrNetwork):
		return msgNetwork
	case errors.Is(err, ErrServer):
		return msgServer
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	}
	return msgUnknown
}

// FieldErrors collects per-field messages from local validation and from the backend
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		for _, field := range apiErr.Fields() {
			name := field
			if alias, ok := backendFieldNames[field]; ok {
				name = alias
			}
			out[name] = apiErr.FieldError(field)
		}
	}
	return out
}
