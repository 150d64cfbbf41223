//go:build windows

package daemonrunner

import "os"

// flockExclusive on Windows is a permissive no-op and takes no lock.
// Acquire opens portal.lock with O_CREATE|O_RDWR and no O_EXCL, so a
// second process opening the same file also succeeds; on Windows this
// package does not stop a second daemon from starting.
func flockExclusive(f *os.File) error {
	return nil
}
