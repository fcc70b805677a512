//go:build linux || darwin || freebsd || netbsd || openbsd

package app

import "golang.org/x/sys/unix"

func getUserSystemCPU() (float64, float64, error) {
	payload := unix.Rusage{}
	if err := unix.Getrusage(unix.RUSAGE_SELF, &payload); err != nil {
		return 0, 0, err
	}

	return timevalToFloat(payload.Utime), timevalToFloat(payload.Stime), nil
}

func timevalToFloat(v unix.Timeval) float64 {
	return float64(v.Sec) + float64(v.Usec)/1_000_000.0
}
