package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/jrsteele09/go-portal/chat"
	"github.com/jrsteele09/go-portal/contact"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json"

	maxAPIBodyBytes = 64 << 10
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("could not write JSON response")
	}
}

// writeJSONError writes {"error": ..., "detail": ...}
func writeJSONError(w http.ResponseWriter, status int, errorMsg, detail string) {
	body := map[string]string{"error": errorMsg}
	if detail != "" {
		body["detail"] = detail
	}
	writeJSON(w, status, body)
}

// decodeBody reads a JSON or form-encoded request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON) {
		return json.NewDecoder(r.Body).Decode(v)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	fromForm(r.PostForm.Get)
	return nil
}

// ContactAPIHandler emails a contact form submission (POST /api/contact)
func (s *Server) ContactAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.contact == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "contact form is not configured", "")
			return
		}

		var sub contact.Submission
		err := decodeBody(w, r, &sub, func(get func(string) string) {
			sub = contact.Submission{
				Name:    get("name"),
				Email:   get("email"),
				Phone:   get("phone"),
				Company: get("company"),
				Service: get("service"),
				Budget:  get("budget"),
				Message: get("message"),
			}
		})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid request body"})
			return
		}

		err = s.contact.Submit(r.Context(), sub)
		switch {
		case errors.Is(err, contact.ErrInvalidSubmission):
			fields := map[string]string{}
			var verrs validation.Errors
			if errors.As(err, &verrs) {
				for field, ferr := range verrs {
					if ferr != nil {
						fields[field] = ferr.Error()
					}
				}
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Please correct the highlighted fields.",
				"errors":  fields,
			})
		case err != nil:
			writeJSONError(w, http.StatusInternalServerError, "Failed to send message", err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]string{"message": "Thanks! We'll be in touch shortly."})
		}
	}
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
}

// ChatAPIHandler answers the chat widget (POST /api/chat)
func (s *Server) ChatAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.chat == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "chat is not configured", "")
			return
		}

		var req chatRequest
		r.Body = http.MaxBytesReader(w, r.Body, maxAPIBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body", "")
			return
		}

		reply, err := s.chat.Complete(r.Context(), req.Messages)
		switch {
		case errors.Is(err, chat.ErrEmptyConversation):
			writeJSONError(w, http.StatusBadRequest, err.Error(), "")
		case errors.Is(err, chat.ErrUnavailable):
			writeJSONError(w, http.StatusServiceUnavailable, "The assistant is busy. Please try again shortly.", "")
		case err != nil:
			writeJSONError(w, http.StatusBadGateway, "The assistant could not answer right now.", "")
		default:
			writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
		}
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": s.sessions.Len(),
		})
	}
}

func (s *Server) MetricsHandler() http.Handler {
	gatherer := s.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
