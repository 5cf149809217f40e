//go:build !unix

package ledger

import "os"

// Without flock only the in-process mutex guards the file.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) {}
