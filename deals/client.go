// Package deals is the underwriting side of the desk: the backend calls that analyse, save and
// list deals, the document uploads feeding them, and the locally kept draft of a deal in progress.
package deals

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/restclient"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Backend routes
const (
	RouteDeal     = "/deal"
	RouteDeals    = "/deals"
	RouteDealByID = "/deals/{id}"
	RouteT12      = "/t12"
	RouteRentRoll = "/rent"
	RouteProperty = "/property"
)

// RequestError is a non-2xx answer from the backend, with the message it gave.
type RequestError struct {
	Op      string
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() []error {
	if e.Status == http.StatusNotFound {
		return []error{apperrors.ErrRequestFailed, apperrors.ErrNotFound}
	}
	return []error{apperrors.ErrRequestFailed}
}

// Client calls the deal routes. Its http.Client is expected to authenticate requests; errors
// from it, including an expired session, are returned unchanged.
type Client struct {
	rest     *resty.Client
	store    tokenstore.Store
	validate *validator.Validate
}

func NewClient(backendURL string, httpClient *http.Client, store tokenstore.Store) *Client {
	return &Client{
		rest:     restclient.New(backendURL, httpClient),
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Submit sends a deal for analysis. The backend saves it as a side effect.
func (c *Client) Submit(ctx context.Context, submission Submission) (*Analysis, error) {
	if err := c.validate.Struct(submission.UserData.BuyBox); err != nil {
		return nil, fmt.Errorf("%w: buy box: %v", apperrors.ErrInvalidRequest, err)
	}
	if err := c.validate.Struct(submission.UserData.Assumptions); err != nil {
		return nil, fmt.Errorf("%w: assumptions: %v", apperrors.ErrInvalidRequest, err)
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(submission).
		Post(RouteDeal)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RequestError{Op: "submit", Status: resp.StatusCode(), Message: ErrorMessage("Analysis", resp.StatusCode(), resp.Body())}
	}

	var analysis Analysis
	if err := json.Unmarshal(dataOrRoot(resp.Body()), &analysis); err != nil {
		return nil, apperrors.Wrapf(err, "[deals Submit] decode analysis")
	}
	log.Info().Str("deal", analysis.ID).Str("decision", analysis.Decision).Msg("deal analysed")
	return &analysis, nil
}

// List returns the saved deals. A body that is not an array is treated as no deals.
func (c *Client) List(ctx context.Context) ([]SavedDeal, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(RouteDeals)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RequestError{Op: "list", Status: resp.StatusCode(), Message: "Failed to load saved deals"}
	}
	if !gjson.ParseBytes(resp.Body()).IsArray() {
		return []SavedDeal{}, nil
	}

	var deals []SavedDeal
	if err := json.Unmarshal(resp.Body(), &deals); err != nil {
		return nil, apperrors.Wrapf(err, "[deals List] decode deals")
	}
	return deals, nil
}

func (c *Client) Get(ctx context.Context, id string) (*SavedDeal, error) {
	resp, err := c.rest.R().SetContext(ctx).SetPathParam("id", id).Get(RouteDealByID)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RequestError{Op: "get", Status: resp.StatusCode(), Message: ErrorMessage("Loading deal", resp.StatusCode(), resp.Body())}
	}

	var deal SavedDeal
	if err := json.Unmarshal(dataOrRoot(resp.Body()), &deal); err != nil {
		return nil, apperrors.Wrapf(err, "[deals Get] decode deal")
	}
	return &deal, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.rest.R().SetContext(ctx).SetPathParam("id", id).Delete(RouteDealByID)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &RequestError{Op: "delete", Status: resp.StatusCode(), Message: ErrorMessage("Delete", resp.StatusCode(), resp.Body())}
	}
	log.Info().Str("deal", id).Msg("deal deleted")
	return nil
}

// UploadT12 sends a trailing-twelve statement for parsing.
func (c *Client) UploadT12(ctx context.Context, fileName string, content io.Reader) (T12Data, error) {
	data, err := c.upload(ctx, RouteT12, fileName, content, "Failed to upload T12 file")
	return T12Data(data), err
}

// UploadRentRoll sends a rent roll for parsing.
func (c *Client) UploadRentRoll(ctx context.Context, fileName string, content io.Reader) (RentRollData, error) {
	data, err := c.upload(ctx, RouteRentRoll, fileName, content, "Failed to upload rent roll file")
	return RentRollData(data), err
}

func (c *Client) upload(ctx context.Context, route, fileName string, content io.Reader, failure string) (map[string]any, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFileReader("file", fileName, content).
		Post(route)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RequestError{Op: "upload", Status: resp.StatusCode(), Message: failure}
	}
	return decodeObject([]byte(gjson.GetBytes(resp.Body(), "data").Raw)), nil
}

// LookupProperty fetches property attributes for an address. The address is remembered under its
// own store key whatever the outcome.
func (c *Client) LookupProperty(ctx context.Context, address string) (PropertyDetails, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", apperrors.ErrInvalidRequest)
	}
	if err := c.store.Set(KeyAddress, address); err != nil {
		log.Err(err).Msg("[deals LookupProperty] failed to remember address")
	}

	resp, err := c.rest.R().SetContext(ctx).SetQueryParam("address", address).Get(RouteProperty)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RequestError{Op: "property", Status: resp.StatusCode(), Message: "Failed to fetch property details"}
	}

	details := PropertyDetails{"address": address}
	for k, v := range decodeObject([]byte(gjson.GetBytes(resp.Body(), "data").Raw)) {
		details[k] = v
	}
	return details, nil
}

// ErrorMessage picks the most specific message out of a failed response body: message, error,
// data.message, then data. A body that is not JSON is used as text.
func ErrorMessage(action string, status int, body []byte) string {
	fallback := fmt.Sprintf("%s failed with status %d", action, status)
	if !gjson.ValidBytes(body) {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return fallback
	}
	root := gjson.ParseBytes(body)
	for _, path := range []string{"message", "error", "data.message", "data"} {
		r := root.Get(path)
		if r.Exists() && r.Type != gjson.Null && r.Type != gjson.False && r.String() != "" {
			return r.String()
		}
	}
	return fallback
}

// dataOrRoot returns the "data" member when there is one, else the whole body.
func dataOrRoot(body []byte) []byte {
	if r := gjson.GetBytes(body, "data"); r.Exists() && r.IsObject() {
		return []byte(r.Raw)
	}
	return body
}
