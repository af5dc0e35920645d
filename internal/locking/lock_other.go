//go:build !unix && !windows

package locking

import "os"

func tryLockFile(*os.File) error {
	return nil
}

func unlockFile(*os.File) error {
	return nil
}
