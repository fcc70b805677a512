package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"

	"github.com/Healthire/turbulence/eventloop"
	"github.com/Healthire/turbulence/native"
	"github.com/Healthire/turbulence/runtime"
)

// Application owns one runtime and runs the services that borrow it.
type Application struct {
	runtime services.Service
	manager *services.Manager
	logger  log.Logger
}

func ApplicationFromConfig(cfg Config, logger log.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level.Info(logger).Log("msg", "using runtime", "runtime", cfg.Runtime)
	switch cfg.Runtime {
	case RuntimeEventLoop:
		r := eventloop.New(cfg.EventLoop, logger)
		return newApplication(cfg, r, eventloop.Borrow(r), logger)
	default:
		r := native.New(cfg.Native, logger)
		return newApplication(cfg, r, native.Borrow(r), logger, r.Metrics())
	}
}

func newApplication[I comparable, D runtime.Delay, V runtime.Interval[I]](
	cfg Config,
	owned services.Service,
	rt runtime.Shared[I, D, V],
	logger log.Logger,
	reporters ...Reporter,
) (*Application, error) {
	var srvs []services.Service
	if cfg.Debug.Enabled {
		level.Info(logger).Log("msg", "running debug server", "address", cfg.Debug.Address)
		srvs = append(srvs, NewDebugServer(cfg.Debug, logger))
	}

	srvs = append(srvs, NewRuntimeContext(cfg.Stats, rt, logger, reporters...))
	srvs = append(srvs, NewProbe(cfg.Probe, rt, logger))

	manager, err := services.NewManager(srvs...)
	if err != nil {
		return nil, err
	}

	return &Application{runtime: owned, manager: manager, logger: logger}, nil
}

// Run starts the runtime, then everything using it, and blocks until ctx ends.
// The runtime is stopped last so work spawned by the other services can finish.
func (a *Application) Run(ctx context.Context) error {
	err := services.StartAndAwaitRunning(ctx, a.runtime)
	if err != nil {
		return fmt.Errorf("unable to start runtime: %w", err)
	}

	defer func() {
		if err := services.StopAndAwaitTerminated(context.Background(), a.runtime); err != nil {
			level.Warn(a.logger).Log("msg", "runtime did not stop cleanly", "err", err)
		}
	}()

	err = a.manager.StartAsync(ctx)
	if err != nil {
		return err
	}

	err = a.manager.AwaitHealthy(ctx)
	if err != nil {
		return err
	}

	err = a.manager.AwaitStopped(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	level.Info(a.logger).Log("msg", "stopping services")
	a.manager.StopAsync()
	return a.manager.AwaitStopped(context.Background())
}
