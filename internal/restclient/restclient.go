// Package restclient builds the resty clients used to talk to the analysis backend.
package restclient

import (
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// New returns a resty client rooted at baseURL. httpClient may carry an authenticating
// transport; nil means http.DefaultClient's behaviour.
func New(baseURL string, httpClient *http.Client) *resty.Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	client := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(WithRequestID).
		OnAfterResponse(logResponse)
	client.JSONMarshal = json.Marshal
	client.JSONUnmarshal = json.Unmarshal
	return client
}

// WithRequestID tags every outbound request so backend logs can be correlated.
func WithRequestID(_ *resty.Client, req *resty.Request) error {
	if req.Header.Get(RequestIDHeader) == "" {
		req.SetHeader(RequestIDHeader, uuid.NewString())
	}
	return nil
}

func logResponse(_ *resty.Client, resp *resty.Response) error {
	log.Debug().
		Str("method", resp.Request.Method).
		Str("url", resp.Request.URL).
		Int("status", resp.StatusCode()).
		Str("request_id", resp.Request.Header.Get(RequestIDHeader)).
		Dur("took", resp.Time()).
		Msg("backend call")
	return nil
}
