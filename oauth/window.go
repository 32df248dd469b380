package oauth

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-underwriter/internal/config"
	"github.com/rs/zerolog/log"
)

// PopupName is the window name the handshake popup is opened with.
const PopupName = "google-oauth"

type WindowSpec struct {
	Name       string
	Width      int
	Height     int
	Scrollbars bool
	Resizable  bool
}

// PopupSpec returns the popup geometry from config.
func PopupSpec(cfg config.OAuthConfig) WindowSpec {
	return WindowSpec{
		Name:       PopupName,
		Width:      cfg.GetPopupWidth(),
		Height:     cfg.GetPopupHeight(),
		Scrollbars: true,
		Resizable:  true,
	}
}

// Features renders the spec in window.open feature-string form.
func (s WindowSpec) Features() string {
	return fmt.Sprintf("width=%d,height=%d,scrollbars=%s,resizable=%s", s.Width, s.Height, yesNo(s.Scrollbars), yesNo(s.Resizable))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Window is an opened popup.
type Window interface {
	Closed() bool
	Close()
}

// Launcher opens popups. A nil Window means the popup was blocked.
type Launcher interface {
	Open(rawURL string, spec WindowSpec) (Window, error)
}

// Notifier shows a blocking notice to the user.
type Notifier interface {
	Alert(message string)
}

// LogNotifier writes notices to the log; used where there is no UI to block.
type LogNotifier struct{}

func (LogNotifier) Alert(message string) {
	log.Warn().Str("notice", message).Msg("oauth")
}

// TrackedWindow is a Window whose closed state is set by whoever owns the real window.
type TrackedWindow struct {
	closed  atomic.Bool
	onClose func()
	once    sync.Once
}

func NewTrackedWindow(onClose func()) *TrackedWindow {
	return &TrackedWindow{onClose: onClose}
}

func (w *TrackedWindow) Closed() bool { return w.closed.Load() }

func (w *TrackedWindow) Close() {
	w.once.Do(func() {
		w.closed.Store(true)
		if w.onClose != nil {
			w.onClose()
		}
	})
}

// BrowserLauncher opens the URL in the system browser. The browser does not report when the user
// closes the tab, so the returned window only becomes closed when the flow closes it.
type BrowserLauncher struct {
	// Command builds the opener command; nil uses the platform default.
	Command func(rawURL string) *exec.Cmd
}

func (l BrowserLauncher) Open(rawURL string, spec WindowSpec) (Window, error) {
	build := l.Command
	if build == nil {
		build = SystemOpener
	}
	cmd := build(rawURL)
	if err := cmd.Start(); err != nil {
		log.Err(err).Str("window", spec.Name).Msg("oauth: browser launch failed")
		return nil, err
	}
	go func() { _ = cmd.Wait() }()
	log.Info().Str("window", spec.Name).Str("features", spec.Features()).Msg("oauth: popup opened")
	return NewTrackedWindow(nil), nil
}

// PageLauncher is used when the desk page opens the popup itself with window.open. The returned
// window is closed by PopupFlow.Cancel once the page reports the popup gone.
type PageLauncher struct{}

func (PageLauncher) Open(rawURL string, spec WindowSpec) (Window, error) {
	log.Info().Str("window", spec.Name).Str("url", rawURL).Msg("oauth: popup handed to the page")
	return NewTrackedWindow(nil), nil
}

// SystemOpener returns the command that opens rawURL with the desktop's default handler.
func SystemOpener(rawURL string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", rawURL)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return exec.Command("xdg-open", rawURL)
	}
}

// OpenURL opens rawURL in the system browser.
func OpenURL(rawURL string) error {
	cmd := SystemOpener(rawURL)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
