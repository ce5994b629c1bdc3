package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/mlredact-addin/internal/config"
	"github.com/jrsteele09/mlredact-addin/internal/logging"
)

const usage = `usage: mlredact [-config file.yaml] <command> [flags]

commands:
  process  run the manual proofread/redact trigger on a draft file
  send     run send interception on a draft file
  probe    check the endpoint answers simple GET and POST requests
  token    show, import or clear the cached token
`

type command func(ctx context.Context, rt *runtime, args []string) error

var commands = map[string]command{
	"process": runProcess,
	"send":    runSend,
	"probe":   runProbe,
	"token":   runToken,
}

func main() {
	err := run(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errSendBlocked):
		os.Exit(2)
	default:
		log.Error().Err(err).Msg("mlredact failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	fs := flag.NewFlagSet("mlredact", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv(config.ConfigFileVar), "YAML file overlaying the environment")
	quiet := fs.Bool("q", false, "skip the banner")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}

	c, err := config.NewFromFile(*configPath)
	if err != nil {
		return err
	}
	logging.Setup(c.GetLogLevel(), !c.IsProduction())
	if !*quiet {
		displayAppname(c.GetAppName())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()

	return cmd(ctx, rt, fs.Args()[1:])
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
