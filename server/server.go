package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/deals"
	"github.com/jrsteele09/go-underwriter/internal/config"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the desk host serves. They are built once in main and shared with the CLI.
type Deps struct {
	Config     config.Config
	Auth       *auth.Service
	Deals      *deals.Client
	Draft      *deals.Draft
	Dispatcher *oauth.Dispatcher
	Popup      *oauth.PopupFlow
	Redirect   *oauth.RedirectFlow
	Bus        *oauth.MessageBus
}

type Server struct {
	env       string
	appName   string
	origin    string
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	auth      *auth.Service
	validator *auth.Validator
	deals     *deals.Client
	draft     *deals.Draft

	dispatcher *oauth.Dispatcher
	popup      *oauth.PopupFlow
	redirect   *oauth.RedirectFlow
	bus        *oauth.MessageBus

	// Popup handshakes outlive the request that started them.
	ctx       context.Context
	cancel    context.CancelFunc
	flows     sync.WaitGroup
	popupBusy atomic.Bool
}

func New(deps Deps) (*Server, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("[Server New] config is required")
	case deps.Auth == nil:
		return nil, fmt.Errorf("[Server New] auth service is required")
	case deps.Deals == nil || deps.Draft == nil:
		return nil, fmt.Errorf("[Server New] deal client and draft are required")
	case deps.Dispatcher == nil || deps.Popup == nil || deps.Redirect == nil || deps.Bus == nil:
		return nil, fmt.Errorf("[Server New] oauth flows are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		env:        deps.Config.GetEnv(),
		appName:    deps.Config.GetAppName(),
		origin:     deps.Config.GetFrontendOrigin(),
		mux:        http.NewServeMux(),
		config:     deps.Config,
		auth:       deps.Auth,
		validator:  auth.NewValidator(),
		deals:      deps.Deals,
		draft:      deps.Draft,
		dispatcher: deps.Dispatcher,
		popup:      deps.Popup,
		redirect:   deps.Redirect,
		bus:        deps.Bus,
		ctx:        ctx,
		cancel:     cancel,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Close cancels any popup handshake still waiting and waits for it to return.
func (s *Server) Close() {
	s.cancel()
	s.flows.Wait()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", colourMethod(method), path, Red+error+ResetColor)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}
