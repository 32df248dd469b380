package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/deals"
	"github.com/jrsteele09/go-underwriter/internal/config"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/jrsteele09/go-underwriter/server"
	"github.com/jrsteele09/go-underwriter/token"
	"github.com/jrsteele09/go-underwriter/token/refresh"
	"github.com/jrsteele09/go-underwriter/tokenstore"
	"github.com/jrsteele09/go-underwriter/tokenstore/filestore"
	"github.com/jrsteele09/go-underwriter/tokenstore/redisstore"
	"github.com/rs/zerolog/log"
)

// app is everything the commands share. The session service is built here once and handed to
// every consumer.
type app struct {
	cfg        config.Config
	store      tokenstore.Store
	closeStore func()
	session    *auth.Service
	httpClient *http.Client
	deals      *deals.Client
	draft      *deals.Draft
	bus        *oauth.MessageBus
	dispatcher *oauth.Dispatcher
	popup      *oauth.PopupFlow
	redirect   *oauth.RedirectFlow
}

// newApp wires the client. flowNav moves the user when a handshake starts or finishes; launcher
// opens the popup window.
func newApp(ctx context.Context, c config.Config, flowNav navigation.Navigator, launcher oauth.Launcher) (*app, error) {
	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	session, err := auth.NewService(store, c.GetBackendURL())
	if err != nil {
		closeStore()
		return nil, err
	}
	session.Init()

	httpClient := token.NewHTTPClient(session, refresh.NewManager(session), navigation.Logger{})

	a := &app{
		cfg:        c,
		store:      store,
		closeStore: closeStore,
		session:    session,
		httpClient: httpClient,
		deals:      deals.NewClient(c.GetBackendURL(), httpClient, store),
		draft:      deals.NewDraft(store),
		bus:        oauth.NewMessageBus(),
	}

	deps := oauth.Deps{
		Session:   session,
		Store:     store,
		Navigator: flowNav,
		Notifier:  oauth.LogNotifier{},
		Bus:       a.bus,
		Origin:    c.GetFrontendOrigin(),
	}
	entry := oauth.EntryURL(c.GetBackendURL(), c.GetOAuthEntryPath())
	a.redirect = oauth.NewRedirectFlow(deps, entry)
	a.popup = oauth.NewPopupFlow(deps, entry, launcher,
		oauth.WithPollInterval(c.GetPopupPollInterval()),
		oauth.WithWindowSpec(oauth.PopupSpec(c)),
	)
	a.dispatcher = oauth.NewDispatcher(a.redirect)
	return a, nil
}

func (a *app) Close() {
	a.closeStore()
}

func (a *app) deskServer() (*server.Server, error) {
	return server.New(server.Deps{
		Config:     a.cfg,
		Auth:       a.session,
		Deals:      a.deals,
		Draft:      a.draft,
		Dispatcher: a.dispatcher,
		Popup:      a.popup,
		Redirect:   a.redirect,
		Bus:        a.bus,
	})
}

// listen serves the desk host until ctx ends.
func (a *app) listen(ctx context.Context) (stop func(), err error) {
	handler, err := a.deskServer()
	if err != nil {
		return nil, err
	}
	httpServer := &http.Server{Addr: a.cfg.GetListenAddr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("server.ListenAndServe")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Err(err).Msg("server.Shutdown")
		}
		handler.Close()
	}, nil
}

func openStore(ctx context.Context, c config.Config) (tokenstore.Store, func(), error) {
	switch c.GetStoreBackend() {
	case config.RedisStoreBackend:
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Err(err).Msg("redis close")
			}
		}
		return redisstore.New(client, c.GetProfile(), c.GetRedisTimeout()), closeFn, nil
	case config.FileStoreBackend:
		store, err := filestore.New(c.GetStorePath(), filestore.WithPassphrase(c.GetStorePassphrase()))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", c.GetStoreBackend())
	}
}
