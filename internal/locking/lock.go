// Package locking guards a destination repository against concurrent synchronization runs with an
// advisory lock on a sibling lock file.
package locking

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	lockFileNameTemplateConstant       = ".%s.mono2repo.lock"
	lockDirectoryPermissionsConstant   = 0o755
	lockFilePermissionsConstant        = 0o644
	destinationLockedMessageConstant   = "destination is locked by another run"
	destinationRequiredMessageConstant = "destination path required for locking"
	lockedTemplateConstant             = "%w: %s"
	lockOpenErrorTemplateConstant      = "unable to open lock file %s: %w"
	lockAcquireErrorTemplateConstant   = "unable to lock %s: %w"
	lockReleaseErrorTemplateConstant   = "unable to release lock %s: %w"
)

var (
	// ErrDestinationLocked indicates another process holds the destination lock.
	ErrDestinationLocked = errors.New(destinationLockedMessageConstant)
	// ErrDestinationRequired indicates an empty destination path.
	ErrDestinationRequired = errors.New(destinationRequiredMessageConstant)

	errLockHeldElsewhere = errors.New("lock held elsewhere")
)

// Lock is an exclusive advisory lock held for the lifetime of one run.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding destination: a hidden sibling named after it.
func LockPath(destination string) string {
	cleanedDestination := filepath.Clean(destination)
	return filepath.Join(filepath.Dir(cleanedDestination), fmt.Sprintf(lockFileNameTemplateConstant, filepath.Base(cleanedDestination)))
}

// Acquire takes the destination lock without blocking. It fails with ErrDestinationLocked when another
// process holds it. On platforms without advisory locking the lock always succeeds.
func Acquire(destination string) (*Lock, error) {
	if len(strings.TrimSpace(destination)) == 0 {
		return nil, ErrDestinationRequired
	}

	lockPath := LockPath(destination)
	if directoryError := os.MkdirAll(filepath.Dir(lockPath), lockDirectoryPermissionsConstant); directoryError != nil {
		return nil, fmt.Errorf(lockOpenErrorTemplateConstant, lockPath, directoryError)
	}

	lockFile, openError := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, lockFilePermissionsConstant)
	if openError != nil {
		return nil, fmt.Errorf(lockOpenErrorTemplateConstant, lockPath, openError)
	}

	if lockError := tryLockFile(lockFile); lockError != nil {
		_ = lockFile.Close()
		if errors.Is(lockError, errLockHeldElsewhere) {
			return nil, fmt.Errorf(lockedTemplateConstant, ErrDestinationLocked, lockPath)
		}
		return nil, fmt.Errorf(lockAcquireErrorTemplateConstant, lockPath, lockError)
	}

	if truncateError := lockFile.Truncate(0); truncateError == nil {
		_, _ = lockFile.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: lockPath, file: lockFile}, nil
}

// Path returns the lock file path.
func (lock *Lock) Path() string {
	return lock.path
}

// Release unlocks and closes the lock file. The file stays on disk so every contender locks the same inode.
func (lock *Lock) Release() error {
	if lock == nil || lock.file == nil {
		return nil
	}
	unlockError := unlockFile(lock.file)
	closeError := lock.file.Close()
	lock.file = nil
	if releaseError := errors.Join(unlockError, closeError); releaseError != nil {
		return fmt.Errorf(lockReleaseErrorTemplateConstant, lock.path, releaseError)
	}
	return nil
}
