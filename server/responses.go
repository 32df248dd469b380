package server

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-underwriter/deals"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// apiError is the body of every failed API call. Redirect is set when the client must sign in again.
type apiError struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Err(err).Msg("[writeJSON] encode response")
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(apiError{Error: message})
}

// writeAPIError maps a failed operation to a status. An expired session tells the caller to start over at the root.
func writeAPIError(w http.ResponseWriter, op string, err error) {
	var reqErr *deals.RequestError
	switch {
	case apperrors.Is(err, apperrors.ErrAuthenticationExpired):
		writeJSON(w, http.StatusUnauthorized, apiError{Error: "Authentication failed", Redirect: navigation.Root})
	case apperrors.Is(err, apperrors.ErrInvalidRequest), apperrors.Is(err, apperrors.ErrIncompleteDraft):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case apperrors.Is(err, apperrors.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case apperrors.As(err, &reqErr):
		status := http.StatusBadGateway
		if reqErr.Status >= 400 && reqErr.Status < 500 {
			status = reqErr.Status
		}
		writeJSONError(w, status, reqErr.Message)
	default:
		log.Err(err).Str("op", op).Msg("[API] request failed")
		writeJSONError(w, http.StatusInternalServerError, op+" failed")
	}
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string) {
	redirectSuccess(w, r, path+"?error="+url.QueryEscape(errorMsg))
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// renderTemplate executes an embedded template into a buffer first so a failure still yields a clean 500.
func renderTemplate(w http.ResponseWriter, name string, statusCode int, data any) {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		log.Err(err).Str("template", name).Msg("[renderTemplate] parse")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("template", name).Msg("[renderTemplate] execute")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(statusCode)
	_, _ = buf.WriteTo(w)
}
