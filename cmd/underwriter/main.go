package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-underwriter/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: underwriter <command> [flags]

commands:
  serve                       run the desk host
  login -email -password      sign in with email and password
  register -email -username -password -confirm
  logout                      forget the stored session
  whoami                      show the signed in user and token
  google [-mode popup|redirect]
  deals list | get <id> | delete <id>
  stats                       summarise saved deals
  property -address <addr>    look up a property and keep it in the draft
  upload t12|rent <file>      parse a document into the draft
  analyze [-markets a,b] [-drop-markets c]
                              edit the buy box and submit the draft for analysis
  draft show | clear | step <n>`

func main() {
	c := config.New()
	setupLogging(c)

	if err := run(c, os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("underwriter")
		os.Exit(1)
	}
}

func run(c config.Config, args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return errors.New("no command given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, c, args[1:])
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
