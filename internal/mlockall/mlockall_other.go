//go:build !linux

package mlockall

import "errors"

// Lock is unavailable on non-Linux platforms.
func Lock() error {
	return errors.New("mlockall: not supported on this platform")
}
