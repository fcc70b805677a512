package app

import (
	"flag"
	"fmt"

	"github.com/Healthire/turbulence/core"
	"github.com/Healthire/turbulence/eventloop"
	"github.com/Healthire/turbulence/native"
)

const (
	RuntimeNative    = "native"
	RuntimeEventLoop = "eventloop"
)

type Config struct {
	Runtime   string
	Native    native.Config
	EventLoop eventloop.Config
	Probe     ProbeConfig
	Stats     StatsConfig
	Debug     DebugConfig
}

func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Runtime, "runtime", RuntimeNative, "Runtime to probe, one of native or eventloop")
	c.Native.RegisterFlags("native.", fs)
	c.EventLoop.RegisterFlags("eventloop.", fs)
	c.Probe.RegisterFlags("probe.", fs)
	c.Stats.RegisterFlags("stats.", fs)
	c.Debug.RegisterFlags("debug.", fs)
}

func (c *Config) Validate() error {
	switch c.Runtime {
	case RuntimeNative, RuntimeEventLoop:
	default:
		return fmt.Errorf("%w: unknown runtime %q", core.ErrConfig, c.Runtime)
	}

	if c.Probe.Period <= 0 {
		return fmt.Errorf("%w: probe period must be positive, got %s", core.ErrConfig, c.Probe.Period)
	}

	if c.Stats.Period <= 0 {
		return fmt.Errorf("%w: stats period must be positive, got %s", core.ErrConfig, c.Stats.Period)
	}

	return nil
}
