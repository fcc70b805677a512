package app

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
)

const debugShutdownTimeout = 5 * time.Second

type DebugConfig struct {
	Enabled bool
	Address string
}

func (c *DebugConfig) RegisterFlags(prefix string, fs *flag.FlagSet) {
	fs.BoolVar(&c.Enabled, prefix+"enabled", false, "Enable debug server for profiling information")
	fs.StringVar(&c.Address, prefix+"address", "localhost:8080", "Address and port for the server to bind to")
}

// DebugServer serves the pprof handlers registered on the default mux.
type DebugServer struct {
	services.Service

	config DebugConfig
	logger log.Logger
}

func NewDebugServer(config DebugConfig, logger log.Logger) *DebugServer {
	s := &DebugServer{
		config: config,
		logger: logger,
	}

	s.Service = services.NewBasicService(nil, s.run, nil)
	return s
}

func (s *DebugServer) run(ctx context.Context) error {
	srv := &http.Server{Addr: s.config.Address}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), debugShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		level.Warn(s.logger).Log("msg", "debug server did not shut down cleanly", "err", err)
	}

	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
