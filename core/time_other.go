//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package core

import "time"

var origin = time.Now()

func monotonic() time.Duration {
	return time.Since(origin)
}
