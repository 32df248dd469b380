package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/deals"
	"github.com/jrsteele09/go-underwriter/internal/config"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/internal/utils"
	"github.com/jrsteele09/go-underwriter/oauth"
	"github.com/jrsteele09/go-underwriter/token"
	"github.com/rs/zerolog/log"
)

type command func(ctx context.Context, c config.Config, args []string) error

var commands = map[string]command{
	"serve":    serveCmd,
	"login":    loginCmd,
	"register": registerCmd,
	"logout":   logoutCmd,
	"whoami":   whoamiCmd,
	"google":   googleCmd,
	"deals":    dealsCmd,
	"stats":    statsCmd,
	"property": propertyCmd,
	"upload":   uploadCmd,
	"analyze":  analyzeCmd,
	"draft":    draftCmd,
}

// withApp builds the client for one command and releases it afterwards.
func withApp(ctx context.Context, c config.Config, fn func(a *app) error) error {
	a, err := newApp(ctx, c, navigation.Logger{}, oauth.BrowserLauncher{})
	if err != nil {
		return err
	}
	defer a.Close()
	return explain(fn(a))
}

// explain turns an expired session into advice.
func explain(err error) error {
	if apperrors.Is(err, apperrors.ErrAuthenticationExpired) {
		return fmt.Errorf("%w: run `underwriter login` again", err)
	}
	return err
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func requireSession(a *app) error {
	if a.session.State() != auth.StateAuthenticated {
		return fmt.Errorf("%w: run `underwriter login` first", apperrors.ErrNotAuthenticated)
	}
	return nil
}

func serveCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(c.GetAppName())
	a, err := newApp(ctx, c, navigation.Logger{}, oauth.PageLauncher{})
	if err != nil {
		return err
	}
	defer a.Close()

	stop, err := a.listen(ctx)
	if err != nil {
		return err
	}
	<-ctx.Done()
	stop()
	log.Info().Msg("Server stopped")
	return nil
}

func loginCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("UNDERWRITER_PASSWORD"), "account password (or UNDERWRITER_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withApp(ctx, c, func(a *app) error {
		if err := a.session.Login(ctx, *email, *password); err != nil {
			return err
		}
		user, _ := a.session.User()
		fmt.Printf("Signed in as %s\n", user.DisplayName())
		return nil
	})
}

func registerCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	userName := fs.String("username", "", "display name")
	password := fs.String("password", "", "account password")
	confirm := fs.String("confirm", "", "password again")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password != *confirm {
		return auth.ErrPasswordsDontMatch
	}
	return withApp(ctx, c, func(a *app) error {
		if err := a.session.Register(ctx, *email, *userName, *password); err != nil {
			return err
		}
		fmt.Printf("Registered and signed in as %s\n", *userName)
		return nil
	})
}

func logoutCmd(ctx context.Context, c config.Config, _ []string) error {
	return withApp(ctx, c, func(a *app) error {
		a.session.Logout()
		fmt.Println("Signed out")
		return nil
	})
}

type whoami struct {
	State     string     `json:"state"`
	Email     string     `json:"email,omitempty"`
	UserName  string     `json:"userName,omitempty"`
	Opaque    bool       `json:"opaqueToken"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
	Refresh   bool       `json:"hasRefreshToken"`
}

func whoamiCmd(ctx context.Context, c config.Config, _ []string) error {
	return withApp(ctx, c, func(a *app) error {
		view := whoami{State: a.session.State().String()}
		if user, ok := a.session.User(); ok {
			view.Email = user.Email
			view.UserName = user.UserName
		}
		if tok, ok := a.session.Token(); ok {
			claims := token.Inspect(tok.AccessToken)
			view.Opaque = claims.Opaque
			view.Subject = claims.Subject
			view.ExpiresAt = claims.ExpiresAt
			view.Expired = claims.Expired(time.Now())
			view.Refresh = tok.RefreshToken != ""
		}
		return printJSON(view)
	})
}

// googleCmd runs the Google handshake. The desk host serves the callback route for as long as it takes.
func googleCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("google", flag.ContinueOnError)
	mode := fs.String("mode", "popup", "popup or redirect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var flowNav navigation.Navigator = navigation.Logger{}
	if *mode == "redirect" {
		flowNav = navigation.Browser{BaseURL: c.GetFrontendURL(), Open: oauth.OpenURL}
	}
	a, err := newApp(ctx, c, flowNav, oauth.BrowserLauncher{})
	if err != nil {
		return err
	}
	defer a.Close()

	stop, err := a.listen(ctx)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, c.GetOAuthTimeout())
	defer cancel()

	switch *mode {
	case "popup":
		release := a.dispatcher.Activate(a.popup)
		defer release()
		result, err := a.popup.Start(ctx)
		if err != nil {
			return err
		}
		if failure, ok := result.(oauth.Failure); ok {
			return failure.Err()
		}
	case "redirect":
		if err := waitForSignIn(ctx, a); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", apperrors.ErrInvalidRequest, *mode)
	}

	user, _ := a.session.User()
	fmt.Printf("Signed in as %s\n", user.DisplayName())
	return nil
}

// waitForSignIn starts the redirect flow and waits for the callback to report its outcome.
func waitForSignIn(ctx context.Context, a *app) error {
	if _, err := a.redirect.Start(ctx); err != nil {
		return err
	}
	result, err := a.redirect.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrOAuthFailed, err)
	}
	if failure, ok := result.(oauth.Failure); ok {
		return failure.Err()
	}
	return nil
}

func dealsCmd(ctx context.Context, c config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("deals: expected list, get <id> or delete <id>")
	}
	return withApp(ctx, c, func(a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}
		switch args[0] {
		case "list":
			list, err := a.deals.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(list)
		case "get", "delete":
			if len(args) < 2 {
				return fmt.Errorf("deals %s: id is required", args[0])
			}
			if args[0] == "delete" {
				if err := a.deals.Delete(ctx, args[1]); err != nil {
					return err
				}
				fmt.Printf("Deleted %s\n", args[1])
				return nil
			}
			deal, err := a.deals.Get(ctx, args[1])
			if err != nil {
				return err
			}
			return printJSON(deal)
		default:
			return fmt.Errorf("deals: unknown subcommand %q", args[0])
		}
	})
}

func statsCmd(ctx context.Context, c config.Config, _ []string) error {
	return withApp(ctx, c, func(a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}
		list, err := a.deals.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(deals.Summarize(list))
	})
}

func propertyCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("property", flag.ContinueOnError)
	address := fs.String("address", "", "street address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withApp(ctx, c, func(a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}
		details, err := a.deals.LookupProperty(ctx, *address)
		if err != nil {
			return err
		}
		if err := a.draft.SetPropertyDetails(details); err != nil {
			return err
		}
		return printJSON(details)
	})
}

func uploadCmd(ctx context.Context, c config.Config, args []string) error {
	if len(args) < 2 {
		return errors.New("upload: expected t12|rent <file>")
	}
	kind, path := args[0], args[1]
	return withApp(ctx, c, func(a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		switch kind {
		case "t12":
			data, err := a.deals.UploadT12(ctx, filepath.Base(path), f)
			if err != nil {
				return err
			}
			if err := a.draft.SetT12Data(data); err != nil {
				return err
			}
			return printJSON(data)
		case "rent":
			data, err := a.deals.UploadRentRoll(ctx, filepath.Base(path), f)
			if err != nil {
				return err
			}
			if err := a.draft.SetRentRollData(data); err != nil {
				return err
			}
			return printJSON(data)
		default:
			return fmt.Errorf("upload: unknown document %q", kind)
		}
	})
}

// editMarkets applies comma separated additions, then removals, to the buy box's preferred markets.
func editMarkets(buyBox deals.BuyBox, add, drop string) deals.BuyBox {
	for _, market := range utils.SplitList(add) {
		buyBox = buyBox.AddMarket(market)
	}
	for _, market := range utils.SplitList(drop) {
		buyBox = buyBox.RemoveMarket(market)
	}
	return buyBox
}

func analyzeCmd(ctx context.Context, c config.Config, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	askingPrice := fs.Float64("asking-price", 0, "set the asking price before submitting")
	markets := fs.String("markets", "", "comma separated preferred markets to add to the buy box")
	dropMarkets := fs.String("drop-markets", "", "comma separated preferred markets to remove from the buy box")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withApp(ctx, c, func(a *app) error {
		if err := requireSession(a); err != nil {
			return err
		}
		if *askingPrice > 0 {
			assumptions := a.draft.Assumptions()
			assumptions.AskingPrice = *askingPrice
			if err := a.draft.SetAssumptions(assumptions); err != nil {
				return err
			}
		}
		if *markets != "" || *dropMarkets != "" {
			if err := a.draft.SetBuyBox(editMarkets(a.draft.BuyBox(), *markets, *dropMarkets)); err != nil {
				return err
			}
		}
		submission, err := a.draft.Submission()
		if err != nil {
			return err
		}
		analysis, err := a.deals.Submit(ctx, submission)
		if err != nil {
			return err
		}
		if err := a.draft.RecordAnalysis(analysis); err != nil {
			return err
		}
		return printJSON(analysis)
	})
}

func draftCmd(ctx context.Context, c config.Config, args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}
	return withApp(ctx, c, func(a *app) error {
		switch args[0] {
		case "show":
			return printJSON(a.draft.Snapshot())
		case "clear":
			if err := a.draft.Clear(); err != nil {
				return err
			}
			fmt.Println("Draft cleared")
			return nil
		case "step":
			if len(args) < 2 {
				return errors.New("draft step: expected a step number")
			}
			step, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: step %q", apperrors.ErrInvalidRequest, args[1])
			}
			return a.draft.SetCurrentStep(step)
		default:
			return fmt.Errorf("draft: unknown subcommand %q", args[0])
		}
	})
}
