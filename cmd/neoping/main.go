package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/neoping-client/internal/config"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: neoping [flags] <command> [args]

commands:
  login -u <username> -p <password>
  signup -u <username> -p <password> [-e <email>]
  logout
  whoami
  health
  get <path>

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if apperrors.Is(err, apperrors.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "Your session has expired. Run `neoping login` to sign in again.")
		}
		log.Error().Err(err).Msg("neoping failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("config.LoadDotEnv: %w", err)
	}
	c := config.New()

	flags := flag.NewFlagSet("neoping", flag.ContinueOnError)
	quiet := flags.Bool("q", false, "do not print the banner")
	verbose := flags.Bool("v", false, "debug logging")
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("no command given")
	}

	setupLogger(c, *verbose)
	if !*quiet {
		displayAppname(c.GetAppName(), out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.dispatch(ctx, flags.Arg(0), flags.Args()[1:], out)
}

func setupLogger(c config.EnvConfig, verbose bool) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func displayAppname(appname string, out io.Writer) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
