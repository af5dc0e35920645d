//go:build windows

package locking

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

const lockedRegionLengthConstant = 1

func tryLockFile(file *os.File) error {
	overlapped := new(windows.Overlapped)
	lockError := windows.LockFileEx(
		windows.Handle(file.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		lockedRegionLengthConstant,
		0,
		overlapped,
	)
	if errors.Is(lockError, windows.ERROR_LOCK_VIOLATION) {
		return errLockHeldElsewhere
	}
	return lockError
}

func unlockFile(file *os.File) error {
	overlapped := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(file.Fd()), 0, lockedRegionLengthConstant, 0, overlapped)
}
