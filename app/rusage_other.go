//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package app

func getUserSystemCPU() (float64, float64, error) {
	return 0, 0, nil
}
