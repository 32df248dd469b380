package server

// Route path constants
const (
	// Pages
	RouteRoot     = "/"
	RouteLogin    = "/login"
	RouteCallback = "/auth/callback"

	// Auth Routes
	RouteAuthGoogle       = "/auth/google"
	RouteAuthGoogleCancel = "/auth/google/cancel"
	RouteAuthLogin        = "/auth/login"
	RouteAuthRegister     = "/auth/register"
	RouteAuthLogout       = "/auth/logout"
	RouteAuthMessage      = "/auth/message"

	// API Routes
	RouteAPISession     = "/api/session"
	RouteAPIDeals       = "/api/deals"
	RouteAPIDealByID    = "/api/deals/{id}"
	RouteAPIDeal        = "/api/deal"
	RouteAPIT12         = "/api/t12"
	RouteAPIRentRoll    = "/api/rent"
	RouteAPIProperty    = "/api/property"
	RouteAPIStatistics  = "/api/statistics"
	RouteAPIDraft       = "/api/draft"
	RouteAPIBuyBox      = "/api/draft/buybox"
	RouteAPIAssumptions = "/api/draft/assumptions"
	RouteAPIStep        = "/api/draft/step"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
