// Package navigation moves the user to a path of the desk UI. What "moving" means depends on the
// surface: a browser tab, a log line for the CLI, or a recorded path in tests.
package navigation

import (
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Root is where a signed-out user lands.
const Root = "/"

type Navigator interface {
	Navigate(path string)
}

// Func adapts a plain function to Navigator.
type Func func(path string)

func (f Func) Navigate(path string) { f(path) }

// Logger only records the navigation in the log. The CLI uses it: there is no page to move.
type Logger struct{}

func (Logger) Navigate(path string) {
	log.Info().Str("path", path).Msg("navigate")
}

// Browser opens base+path with Open, typically a system browser launcher.
type Browser struct {
	BaseURL string
	Open    func(rawURL string) error
}

func (b Browser) Navigate(path string) {
	target := Resolve(b.BaseURL, path)
	if err := b.Open(target); err != nil {
		log.Err(err).Str("url", target).Msg("navigate: open failed")
	}
}

// Resolve joins a path onto a base URL. Absolute URLs are returned unchanged.
func Resolve(baseURL, path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// Recorder keeps every path it is sent.
type Recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Last returns the most recent path, or "" if none.
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.paths) == 0 {
		return ""
	}
	return r.paths[len(r.paths)-1]
}
