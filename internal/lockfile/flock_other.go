//go:build !unix

package lockfile

import "os"

// Non-unix platforms get no advisory locking; the open itself is the only
// guard. The daemon refuses to start twice via the socket bind instead.
func flockExclusive(f *os.File) error { return nil }

func flockUnlock(f *os.File) error { return nil }
