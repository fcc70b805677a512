package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/Healthire/turbulence/app"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	fs := flag.NewFlagSet("turbulence-probe", flag.ExitOnError)
	cfg := app.Config{}
	cfg.RegisterFlags(fs)
	logLevel := fs.String("log.level", "info", "Minimum level of logs to emit, one of debug, info, warn, error")

	err := fs.Parse(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	} else if err != nil {
		level.Error(logger).Log("msg", "unable to parse configuration options", "err", err)
		os.Exit(1)
	}

	logger = log.With(level.NewFilter(logger, levelOption(*logLevel)), "ts", log.DefaultTimestampUTC)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.ApplicationFromConfig(cfg, logger)
	if err != nil {
		level.Error(logger).Log("msg", "unable to create application", "err", err)
		os.Exit(1)
	}

	err = a.Run(ctx)
	if err != nil {
		level.Error(logger).Log("msg", "error running application", "err", err)
		os.Exit(1)
	}
}

func levelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
