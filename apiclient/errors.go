package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	perrors "github.com/jrsteele09/go-portal/internal/errors"
)

// Error kinds carried by APIError, matched with errors.Is
var (
	ErrTimeout           = perrors.ErrTimeout
	ErrNetwork           = perrors.ErrNetwork
	ErrUnauthorized      = perrors.ErrUnauthorized
	ErrValidation        = perrors.ErrValidation
	ErrServer            = perrors.ErrServer
	ErrRequest           = perrors.ErrRequest
	ErrSessionExpired    = perrors.ErrSessionExpired
	ErrMalformedResponse = perrors.ErrMalformedResponse
)

// APIError is the single shape every backend failure is normalised into. Callers never see
// raw transport errors.
type APIError struct {
	Status           int                 `json:"status"`
	Message          string              `json:"message"`
	ValidationErrors map[string][]string `json:"validationErrors,omitempty"`

	Kind  error `json:"-"`
	Cause error `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// FieldError returns the first validation message for field
func (e *APIError) FieldError(field string) string {
	if msgs := e.ValidationErrors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Fields returns the fields with validation errors in sorted order
func (e *APIError) Fields() []string {
	fields := make([]string, 0, len(e.ValidationErrors))
	for f := range e.ValidationErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

type errorPayload struct {
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

type fieldEntry struct {
	Field    string `json:"field"`
	Property string `json:"property"`
	Path     string `json:"path"`
	Param    string `json:"param"`
	Message  string `json:"message"`
	Msg      string `json:"msg"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Kind: kindForStatus(status)}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		text := strings.TrimSpace(string(body))
		if text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
			e.Message = text
		}
	} else {
		var list []string
		e.Message, list = decodeMessage(payload.Message)
		if e.Message == "" {
			e.Message, _ = decodeMessage(payload.Error)
		}
		e.ValidationErrors = decodeFieldErrors(payload.Errors)
		if isValidationStatus(status) && e.ValidationErrors == nil {
			for _, msg := range list {
				e.addFieldError(fieldFromMessage(msg), msg)
			}
		}
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if isValidationStatus(status) && len(e.ValidationErrors) > 0 {
		e.Kind = ErrValidation
	}
	return e
}

func (e *APIError) addFieldError(field, msg string) {
	if e.ValidationErrors == nil {
		e.ValidationErrors = make(map[string][]string)
	}
	e.ValidationErrors[field] = append(e.ValidationErrors[field], msg)
}

// decodeMessage accepts "text", ["a","b"] or {"message":"text"}
func decodeMessage(raw json.RawMessage) (string, []string) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; "), list
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message, nil
	}
	return "", nil
}

// decodeFieldErrors accepts {"field":"msg"}, {"field":["a","b"]} or
// [{"field|property|path|param":"x","message|msg":"..."}]
func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for field, v := range obj {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[field] = append(out[field], s)
				continue
			}
			var list []string
			if err := json.Unmarshal(v, &list); err == nil {
				out[field] = append(out[field], list...)
			}
		}
	} else {
		var entries []fieldEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil
		}
		for _, en := range entries {
			field := firstNonEmpty(en.Field, en.Property, en.Path, en.Param)
			msg := firstNonEmpty(en.Message, en.Msg)
			if msg == "" {
				continue
			}
			out[field] = append(out[field], msg)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// fieldFromMessage takes the leading property name of messages such as
// "email must be an email"
func fieldFromMessage(msg string) string {
	if fields := strings.Fields(msg); len(fields) > 1 {
		return fields[0]
	}
	return "general"
}

func isValidationStatus(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnprocessableEntity
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return ErrServer
	default:
		return ErrRequest
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
