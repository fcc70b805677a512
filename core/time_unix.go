//go:build linux || darwin || freebsd || netbsd || openbsd

package core

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

func monotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic(fmt.Sprintf("unable to read monotonic clock: %s", err))
	}

	return time.Duration(ts.Nano())
}
