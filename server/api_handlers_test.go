package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-portal/chat"
	"github.com/stretchr/testify/require"
)

func validContact() map[string]string {
	return map[string]string{
		"name":    "Grace Hopper",
		"email":   "grace@example.com",
		"phone":   "(650) 253-0000",
		"service": "Cloud Migration",
		"message": "We would like to move our servers to the cloud.",
	}
}

func TestContactAPI(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, RouteAPIContact, validContact())
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "message")
	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "grace@example.com", f.mailer.sent[0].ReplyTo)

	form := url.Values{}
	for k, v := range validContact() {
		form.Set(k, v)
	}
	resp = f.postForm(t, RouteAPIContact, form)
	require.Equal(t, http.StatusOK, resp.status)
	require.Len(t, f.mailer.sent, 2)
}

func TestContactAPIRejectsInvalidSubmission(t *testing.T) {
	f := newFixture(t)

	sub := validContact()
	sub["email"] = "nope"
	sub["message"] = "hi"
	resp := f.postJSON(t, RouteAPIContact, sub)
	require.Equal(t, http.StatusBadRequest, resp.status)

	var body struct {
		Message string            `json:"message"`
		Errors  map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.body), &body))
	require.NotEmpty(t, body.Message)
	require.Contains(t, body.Errors, "email")
	require.Contains(t, body.Errors, "message")
	require.Empty(t, f.mailer.sent)

	resp = f.postJSON(t, RouteAPIContact, "not an object")
	require.Equal(t, http.StatusBadRequest, resp.status)
}

func TestContactAPIDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp: connection refused")

	resp := f.postJSON(t, RouteAPIContact, validContact())
	require.Equal(t, http.StatusInternalServerError, resp.status)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(resp.body), &body))
	require.Equal(t, "Failed to send message", body["error"])
	require.Contains(t, body["detail"], "connection refused")
}

func newChatUpstream(t *testing.T, status int) *httptest.Server {
	t.Helper()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "We can help with that."}}},
		})
	}))
	t.Cleanup(upstream.Close)
	return upstream
}

func TestChatAPI(t *testing.T) {
	upstream := newChatUpstream(t, http.StatusOK)
	client, err := chat.New(upstream.URL, "key", "test-model")
	require.NoError(t, err)
	f := newFixture(t, WithChatClient(client))

	resp := f.postJSON(t, RouteAPIChat, map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Do you do cloud migrations?"}},
	})
	require.Equal(t, http.StatusOK, resp.status)
	require.JSONEq(t, `{"reply":{"role":"assistant","content":"We can help with that."}}`, resp.body)

	resp = f.postJSON(t, RouteAPIChat, map[string]any{"messages": []any{}})
	require.Equal(t, http.StatusBadRequest, resp.status)
}

func TestChatAPIUpstreamFailure(t *testing.T) {
	upstream := newChatUpstream(t, http.StatusInternalServerError)
	client, err := chat.New(upstream.URL, "key", "test-model")
	require.NoError(t, err)
	f := newFixture(t, WithChatClient(client))

	resp := f.postJSON(t, RouteAPIChat, map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hello"}},
	})
	require.Equal(t, http.StatusBadGateway, resp.status)
}

func TestChatAPIDisabled(t *testing.T) {
	f := newFixture(t)

	resp := f.postJSON(t, RouteAPIChat, map[string]any{"messages": []any{}})
	require.Equal(t, http.StatusServiceUnavailable, resp.status)
}

func TestCorsPreflight(t *testing.T) {
	f := newFixture(t)

	preflight := func(origin string) response {
		req, err := http.NewRequest(http.MethodOptions, f.http.URL+RouteAPIContact, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return f.do(t, req)
	}

	resp := preflight("https://partner.example.com")
	require.Equal(t, http.StatusOK, resp.status)
	require.Equal(t, "https://partner.example.com", resp.header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.header.Get("Access-Control-Allow-Credentials"))

	resp = preflight("https://evil.example.com")
	require.Empty(t, resp.header.Get("Access-Control-Allow-Origin"))
}

func TestValidatePassword(t *testing.T) {
	f := newFixture(t)

	resp := f.postForm(t, RouteAPIValidatePassword, url.Values{"password": {"weak"}})
	require.Equal(t, http.StatusOK, resp.status)
	require.Contains(t, resp.body, "field-error")
	require.Contains(t, resp.body, "at least 8 characters")

	resp = f.postForm(t, RouteAPIValidatePassword, url.Values{"password": {"Str0ngEnough"}})
	require.True(t, strings.Contains(resp.body, "field-ok"))
}
