// Package testbackend is an in-process stand-in for the analysis backend, used by tests across
// the module. It issues opaque tokens, enforces bearer auth on the deal routes and counts calls.
package testbackend

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
)

type Account struct {
	Email    string
	UserName string
	Password string
}

// Behaviour switches how the fake answers. Change it through Configure.
type Behaviour struct {
	FailRefresh      bool          // /refresh answers 401
	RefreshNested    bool          // /refresh answers {"data":{...}}
	RefreshUserName  string        // included in /refresh responses when set
	OmitRefreshToken bool          // /login omits refreshToken
	RefreshHook      func()        // runs at the start of every /refresh
	OAuthRedirect    func() string // /google redirects to this URL
}

type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	accounts      map[string]Account
	accessTokens  map[string]string // token -> email
	refreshTokens map[string]string // refresh token -> email
	deals         []map[string]any
	seq           int

	behaviour Behaviour

	LoginCalls    atomic.Int32
	RegisterCalls atomic.Int32
	RefreshCalls  atomic.Int32
	Unauthorized  atomic.Int32
}

func New(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		accounts:      make(map[string]Account),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", b.login)
	mux.HandleFunc("POST /register", b.register)
	mux.HandleFunc("POST /refresh", b.refresh)
	mux.HandleFunc("GET /google", b.google)
	mux.HandleFunc("/echo", b.requireAuth(b.echo))
	mux.HandleFunc("POST /deal", b.requireAuth(b.submitDeal))
	mux.HandleFunc("GET /deals", b.requireAuth(b.listDeals))
	mux.HandleFunc("GET /deals/{id}", b.requireAuth(b.getDeal))
	mux.HandleFunc("DELETE /deals/{id}", b.requireAuth(b.deleteDeal))
	mux.HandleFunc("POST /t12", b.requireAuth(b.upload))
	mux.HandleFunc("POST /rent", b.requireAuth(b.upload))
	mux.HandleFunc("GET /property", b.requireAuth(b.property))

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) Configure(fn func(*Behaviour)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.behaviour)
}

func (b *Backend) current() Behaviour {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.behaviour
}

func (b *Backend) AddAccount(email, userName, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[email] = Account{Email: email, UserName: userName, Password: password}
}

// IssueTokens mints a token pair for an existing or new account without going through /login.
func (b *Backend) IssueTokens(email string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

// ExpireAccessTokens invalidates every bearer token; refresh tokens stay valid.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTokens = make(map[string]string)
}

// SeedDeal stores a saved deal as the backend would after an analysis.
func (b *Backend) SeedDeal(deal map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deals = append(b.deals, deal)
}

func (b *Backend) DealCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.deals)
}

func (b *Backend) issueLocked(email string) (string, string) {
	b.seq++
	access := fmt.Sprintf("access-%d", b.seq)
	refresh := fmt.Sprintf("refresh-%d", b.seq)
	b.accessTokens[access] = email
	b.refreshTokens[refresh] = email
	return access, refresh
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	b.LoginCalls.Add(1)
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad body"})
		return
	}

	b.mu.Lock()
	account, ok := b.accounts[req.Email]
	if !ok || account.Password != req.Password {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
		return
	}
	access, refresh := b.issueLocked(req.Email)
	b.mu.Unlock()

	body := map[string]any{"token": access, "username": account.UserName}
	if !b.current().OmitRefreshToken {
		body["refreshToken"] = refresh
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	b.RegisterCalls.Add(1)
	var req struct {
		Email    string `json:"email"`
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "bad body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.accounts[req.Email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "already registered"})
		return
	}
	b.accounts[req.Email] = Account{Email: req.Email, UserName: req.UserName, Password: req.Password}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "created"})
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.RefreshCalls.Add(1)
	behaviour := b.current()
	if behaviour.RefreshHook != nil {
		behaviour.RefreshHook()
	}
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	email, ok := b.refreshTokens[req.RefreshToken]
	if !ok || behaviour.FailRefresh {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "refresh rejected"})
		return
	}
	b.seq++
	access := fmt.Sprintf("access-%d", b.seq)
	b.accessTokens[access] = email
	b.mu.Unlock()

	payload := map[string]any{"token": access}
	if behaviour.RefreshUserName != "" {
		payload["userName"] = behaviour.RefreshUserName
	}
	if behaviour.RefreshNested {
		writeJSON(w, http.StatusOK, map[string]any{"data": payload})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (b *Backend) google(w http.ResponseWriter, r *http.Request) {
	redirect := b.current().OAuthRedirect
	if redirect == nil {
		http.Error(w, "oauth not configured", http.StatusNotImplemented)
		return
	}
	http.Redirect(w, r, redirect(), http.StatusFound)
}

func (b *Backend) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		_, ok := b.accessTokens[token]
		b.mu.Unlock()
		if !ok {
			b.Unauthorized.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// echo reflects the request so tests can compare a retried request with the original.
func (b *Backend) echo(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	if r.URL.Query().Get("status") == "500" {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method":        r.Method,
		"body":          string(body),
		"authorization": r.Header.Get("Authorization"),
		"custom":        r.Header.Get("X-Custom"),
	})
}

func (b *Backend) submitDeal(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid deal payload"})
		return
	}
	if payload["t12Data"] == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"data": map[string]any{"message": "t12Data is required"}})
		return
	}

	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("deal-%d", b.seq)
	result := map[string]any{
		"_id":        id,
		"decision":   "PASS",
		"confidence": "HIGH",
		"reasoning":  []string{"Cap rate above buy box minimum"},
		"metrics": map[string]any{
			"capRate": 6.7, "cocReturn": 9.1, "irr": 14.2, "dscr": 1.4, "pricePerUnit": 77083, "expenseRatio": 60,
		},
		"risks": []string{"Older building"},
	}
	saved := map[string]any{"_id": id, "dealData": result, "userData": payload["userData"]}
	for k, v := range result {
		saved[k] = v
	}
	b.deals = append(b.deals, saved)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

func (b *Backend) listDeals(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	deals := make([]map[string]any, len(b.deals))
	copy(deals, b.deals)
	writeJSON(w, http.StatusOK, deals)
}

func (b *Backend) getDeal(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, deal := range b.deals {
		if deal["_id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, deal)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "deal not found"})
}

func (b *Backend) deleteDeal(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, deal := range b.deals {
		if deal["_id"] == r.PathValue("id") {
			b.deals = append(b.deals[:i], b.deals[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"message": "deal not found"})
}

func (b *Backend) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "file is required"})
		return
	}
	defer file.Close()
	content, _ := io.ReadAll(file)
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"fileName": header.Filename,
		"bytes":    len(content),
		"kind":     strings.TrimPrefix(r.URL.Path, "/"),
	}})
}

func (b *Backend) property(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "address is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"units":        24,
		"yearBuilt":    1985,
		"propertyType": "Multifamily",
		"query":        url.QueryEscape(address),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
