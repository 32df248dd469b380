package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// Pages
	s.RegisterRouteHandler("GET "+RouteRoot+"{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))

	// Auth
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthGoogle, ChainMiddleware(s.GoogleHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthGoogleCancel, ChainMiddleware(s.GoogleCancelHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthMessage, ChainMiddleware(s.MessageHandler(), s.APIMiddleware()...))

	// API
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIDeals, ChainMiddleware(s.ListDealsHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteAPIDealByID, ChainMiddleware(s.GetDealHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("DELETE "+RouteAPIDealByID, ChainMiddleware(s.DeleteDealHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("POST "+RouteAPIDeal, ChainMiddleware(s.AnalyzeHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("POST "+RouteAPIT12, ChainMiddleware(s.UploadT12Handler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("POST "+RouteAPIRentRoll, ChainMiddleware(s.UploadRentRollHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteAPIProperty, ChainMiddleware(s.PropertyHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("GET "+RouteAPIStatistics, ChainMiddleware(s.StatisticsHandler(), s.APIMiddleware(s.RequireSession)...))

	// Draft
	s.RegisterRouteHandler("GET "+RouteAPIDraft, ChainMiddleware(s.DraftHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("DELETE "+RouteAPIDraft, ChainMiddleware(s.ClearDraftHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("PUT "+RouteAPIBuyBox, ChainMiddleware(s.BuyBoxHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("PUT "+RouteAPIAssumptions, ChainMiddleware(s.AssumptionsHandler(), s.APIMiddleware(s.RequireSession)...))
	s.RegisterRouteHandler("PUT "+RouteAPIStep, ChainMiddleware(s.StepHandler(), s.APIMiddleware(s.RequireSession)...))

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := r.PathValue("file")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		err := StreamFile(w, r, filePath)
		if err != nil {
			logError("GET", filePath, err.Error())
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}
