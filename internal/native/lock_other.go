//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package native

import "os"

// Platforms without flock open files unlocked.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }
