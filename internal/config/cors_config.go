package config

import (
	"strings"

	"github.com/jrsteele09/go-underwriter/internal/utils"
)

type Cors struct{}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins allows the frontend origin plus any extra ALLOWED_ORIGINS (comma separated).
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{Backend{}.GetFrontendOrigin(): nullValue{}}
	for _, origin := range utils.SplitList(GetEnv("ALLOWED_ORIGINS", "")) {
		origins[origin] = nullValue{}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
