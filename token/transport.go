// Package token carries the session's bearer token onto outgoing backend requests and recovers
// from an expired token by refreshing once and replaying the request.
package token

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/internal/restclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// ErrAuthenticationExpired is returned when a 401 could not be recovered by a refresh.
var ErrAuthenticationExpired = apperrors.ErrAuthenticationExpired

// Session is the part of the auth service the transport needs.
type Session interface {
	Token() (*oauth2.Token, bool)
	Logout()
}

// Refresher renews the stored token. Implementations should coalesce concurrent calls.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Transport is an http.RoundTripper that authenticates requests. On a 401 it refreshes the token
// and replays the request exactly once; if the refresh fails it signs the session out, sends the
// user to the root page and fails the request with ErrAuthenticationExpired.
type Transport struct {
	Session   Session
	Refresher Refresher
	Navigator navigation.Navigator
	Base      http.RoundTripper
}

var _ http.RoundTripper = (*Transport)(nil)

// NewHTTPClient returns a client whose requests go through a Transport.
func NewHTTPClient(session Session, refresher Refresher, navigator navigation.Navigator) *http.Client {
	return &http.Client{Transport: &Transport{
		Session:   session,
		Refresher: refresher,
		Navigator: navigator,
	}}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := replayableBody(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[Transport] buffer request body")
	}

	first, err := t.authorize(req, body)
	if err != nil {
		return nil, err
	}
	resp, err := t.base().RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	requestID := first.Header.Get(restclient.RequestIDHeader)
	log.Info().Str("request_id", requestID).Str("path", req.URL.Path).Msg("[Transport] 401, refreshing token")

	if !t.Refresher.Refresh(req.Context()) {
		log.Warn().Str("request_id", requestID).Msg("[Transport] refresh failed, signing out")
		t.Session.Logout()
		if t.Navigator != nil {
			t.Navigator.Navigate(navigation.Root)
		}
		return nil, ErrAuthenticationExpired
	}

	retry, err := t.authorize(req, body)
	if err != nil {
		return nil, err
	}
	// A second 401 goes back to the caller as is.
	return t.base().RoundTrip(retry)
}

// authorize clones req with a fresh body and the current bearer token. The caller's request is
// never modified.
func (t *Transport) authorize(req *http.Request, body func() (io.ReadCloser, error)) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, apperrors.Wrapf(err, "[Transport] replay request body")
		}
		clone.Body = rc
		clone.GetBody = body
	}
	if clone.Header.Get(restclient.RequestIDHeader) == "" {
		clone.Header.Set(restclient.RequestIDHeader, uuid.NewString())
	}
	if tok, ok := t.Session.Token(); ok {
		tok.SetAuthHeader(clone)
	}
	return clone, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		// Every attempt reads a fresh copy, so the caller's body is finished with here.
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
