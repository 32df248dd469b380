package oauth

import (
	"context"

	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/oauthmodel"
	"github.com/rs/zerolog/log"
)

const RedirectFlowName = "redirect"

// RedirectFlow sends the whole page to the entry URL. The flow is finished by Receive when the
// backend redirects back; a caller that started it can collect that outcome with Wait.
type RedirectFlow struct {
	deps     Deps
	entryURL string
	outcomes chan Result
}

func NewRedirectFlow(deps Deps, entryURL string) *RedirectFlow {
	return &RedirectFlow{deps: deps, entryURL: entryURL, outcomes: make(chan Result, 1)}
}

func (f *RedirectFlow) Name() string { return RedirectFlowName }

func (f *RedirectFlow) EntryURL() string { return f.entryURL }

// Start navigates to the entry URL and returns at once with a nil Result. Any outcome left over
// from an earlier callback is discarded.
func (f *RedirectFlow) Start(context.Context) (Result, error) {
	for drained := false; !drained; {
		select {
		case <-f.outcomes:
		default:
			drained = true
		}
	}
	f.deps.Navigator.Navigate(f.entryURL)
	return nil, nil
}

// Wait blocks until Receive handles a callback or ctx ends, and returns that callback's outcome.
func (f *RedirectFlow) Wait(ctx context.Context) (Result, error) {
	select {
	case result := <-f.outcomes:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *RedirectFlow) report(result Result) {
	select {
	case f.outcomes <- result:
	default:
		log.Debug().Msg("oauth: redirect outcome already pending, dropped")
	}
}

// Receive stores the session and sends the page to the root, or to the login page with the
// error. It never posts a message: there is no opener.
func (f *RedirectFlow) Receive(params oauthmodel.CallbackParameters) CallbackAction {
	if params.Error == "" && params.HasSession() {
		user := params.SessionUser()
		if err := establish(f.deps, params.Token, user); err != nil {
			log.Err(err).Msg("oauth: failed to record redirect session")
			f.report(Failure{Reason: "Failed to store session"})
			return CallbackAction{Kind: ActionNavigate, Location: LoginErrorLocation("Failed to store session")}
		}
		log.Info().Str("email", user.Email).Msg("oauth: signed in via redirect")
		f.report(Success{Token: params.Token, User: user})
		return CallbackAction{Kind: ActionNavigate, Location: navigation.Root}
	}

	reason := params.FailureReason()
	log.Warn().Str("reason", reason).Msg("oauth: redirect handshake failed")
	f.report(Failure{Reason: reason})
	return CallbackAction{Kind: ActionNavigate, Location: LoginErrorLocation(reason)}
}
