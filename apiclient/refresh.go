package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jrsteele09/go-portal/internal/metrics"
	"github.com/jrsteele09/go-portal/tokenstore"
	"github.com/rs/zerolog/log"
)

const refreshKey = "refresh"

var errNoRefreshToken = errors.New("no refresh token")

// refresh rotates the token pair. Concurrent callers share one in-flight refresh. A caller
// whose failed request used an access token that has already been replaced skips the call
// and replays with the current token.
func (c *Client) refresh(ctx context.Context, staleAccess string) error {
	// the shared call must not die with whichever caller started it
	flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
	defer cancel()

	_, err, _ := c.refreshGroup.Do(refreshKey, func() (any, error) {
		current := c.store.Tokens(flightCtx)
		if current == nil || current.RefreshToken == "" {
			return nil, errNoRefreshToken
		}
		if current.AccessToken != staleAccess {
			c.metrics.ObserveRefresh(metrics.OutcomeSkipped)
			return nil, nil
		}

		pair, err := c.callRefresh(flightCtx, current.RefreshToken)
		if err != nil {
			c.metrics.ObserveRefresh(metrics.OutcomeFailure)
			log.Info().Err(err).Msg("token refresh failed, ending session")
			c.expire(flightCtx)
			return nil, err
		}
		if err := c.store.SetTokens(flightCtx, pair); err != nil {
			log.Warn().Err(err).Msg("refreshed tokens could not be persisted")
		}
		c.metrics.ObserveRefresh(metrics.OutcomeSuccess)
		return nil, nil
	})
	return err
}

func (c *Client) refreshTimeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return DefaultTimeout
}

func (c *Client) callRefresh(ctx context.Context, refreshToken string) (*tokenstore.Pair, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, err
	}
	req := &request{method: http.MethodPost, path: c.refreshPath, body: body}

	status, data, err := c.send(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, newAPIError(status, data)
	}

	pair, err := DecodeTokenPair(data)
	if err != nil {
		return nil, &APIError{Status: status, Message: "refresh response carried no access token", Kind: ErrServer, Cause: ErrMalformedResponse}
	}
	if pair.RefreshToken == "" {
		// backend did not rotate the refresh token
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// expire clears the session's tokens and notifies the owner
func (c *Client) expire(ctx context.Context) {
	if err := c.store.SetTokens(ctx, nil); err != nil {
		log.Warn().Err(err).Msg("could not clear tokens after failed refresh")
	}
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

type wirePair struct {
	AccessToken       string `json:"accessToken"`
	RefreshToken      string `json:"refreshToken"`
	AccessTokenSnake  string `json:"access_token"`
	RefreshTokenSnake string `json:"refresh_token"`
}

func (w wirePair) pair() tokenstore.Pair {
	return tokenstore.Pair{
		AccessToken:  firstNonEmpty(w.AccessToken, w.AccessTokenSnake),
		RefreshToken: firstNonEmpty(w.RefreshToken, w.RefreshTokenSnake),
	}
}

// DecodeTokenPair reads a token pair from any of the shapes the backend returns:
// {accessToken, refreshToken}, {tokens: {...}}, {token: "..." | {...}, refreshToken},
// optionally wrapped in {data: ...}.
func DecodeTokenPair(data []byte) (*tokenstore.Pair, error) {
	var envelope struct {
		wirePair
		Token  json.RawMessage  `json:"token"`
		Tokens *wirePair        `json:"tokens"`
		Data   *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	top := envelope.wirePair.pair()
	var p tokenstore.Pair
	switch {
	case envelope.Tokens != nil:
		p = envelope.Tokens.pair()
	case len(envelope.Token) > 0 && string(envelope.Token) != "null":
		var s string
		if err := json.Unmarshal(envelope.Token, &s); err == nil {
			p = tokenstore.Pair{AccessToken: s}
		} else {
			var nested wirePair
			if err := json.Unmarshal(envelope.Token, &nested); err != nil {
				return nil, err
			}
			p = nested.pair()
		}
	case top.AccessToken != "":
		p = top
	case envelope.Data != nil:
		return DecodeTokenPair(*envelope.Data)
	}

	if p.RefreshToken == "" {
		p.RefreshToken = top.RefreshToken
	}
	if p.AccessToken == "" {
		return nil, ErrMalformedResponse
	}
	return &p, nil
}
