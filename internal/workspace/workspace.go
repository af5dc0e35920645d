// Package workspace allocates the scratch directory used by one synchronization run.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	temporaryDirectoryPrefixConstant        = "mono2repo-"
	persistentDirectoryPermissionsConstant  = 0o755
	fileSystemNotConfiguredMessageConstant  = "workspace file system not configured"
	workspaceCreationErrorTemplateConstant  = "unable to create workspace %s: %w"
	temporaryWorkspaceErrorTemplateConstant = "unable to create temporary workspace: %w"
	entryRemovalErrorTemplateConstant       = "unable to remove workspace entry %s: %w"
	workspaceNotDirectoryTemplateConstant   = "workspace path %s exists and is not a directory"
	workspaceAcquiredMessageConstant        = "Workspace acquired"
	workspaceReleasedMessageConstant        = "Workspace removed"
	workspaceKeptMessageConstant            = "Workspace kept"
	workspaceRemovalFailedMessageConstant   = "Workspace removal failed"
	logFieldWorkspacePathConstant           = "workspace"
	logFieldWorkspacePersistentConstant     = "persistent"
)

// ErrFileSystemNotConfigured indicates a nil afero.Fs was supplied.
var ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)

// Workspace is a directory owned by a single run. A temporary workspace is removed by Release; a
// persistent workspace supplied by the caller is kept.
type Workspace struct {
	logger     *zap.Logger
	fileSystem afero.Fs
	path       string
	persistent bool
	released   bool
}

// Acquire creates the workspace. An empty requestedPath allocates a fresh uniquely named directory under
// the system temporary directory; otherwise requestedPath is created when missing and kept on Release.
func Acquire(logger *zap.Logger, fileSystem afero.Fs, requestedPath string) (*Workspace, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmedPath := strings.TrimSpace(requestedPath)
	workspace := &Workspace{logger: logger, fileSystem: fileSystem}

	if len(trimmedPath) == 0 {
		temporaryPath, temporaryError := afero.TempDir(fileSystem, "", temporaryDirectoryPrefixConstant)
		if temporaryError != nil {
			return nil, fmt.Errorf(temporaryWorkspaceErrorTemplateConstant, temporaryError)
		}
		workspace.path = temporaryPath
	} else {
		cleanedPath := filepath.Clean(trimmedPath)
		if information, statError := fileSystem.Stat(cleanedPath); statError == nil && !information.IsDir() {
			return nil, fmt.Errorf(workspaceNotDirectoryTemplateConstant, cleanedPath)
		}
		if creationError := fileSystem.MkdirAll(cleanedPath, persistentDirectoryPermissionsConstant); creationError != nil {
			return nil, fmt.Errorf(workspaceCreationErrorTemplateConstant, cleanedPath, creationError)
		}
		workspace.path = cleanedPath
		workspace.persistent = true
	}

	logger.Debug(workspaceAcquiredMessageConstant,
		zap.String(logFieldWorkspacePathConstant, workspace.path),
		zap.Bool(logFieldWorkspacePersistentConstant, workspace.persistent),
	)
	return workspace, nil
}

// Path returns the workspace directory.
func (workspace *Workspace) Path() string {
	return workspace.path
}

// Persistent reports whether the workspace outlives the run.
func (workspace *Workspace) Persistent() bool {
	return workspace.persistent
}

// Join returns a path inside the workspace.
func (workspace *Workspace) Join(elements ...string) string {
	return filepath.Join(append([]string{workspace.path}, elements...)...)
}

// ResetEntry removes a previous run's leftover entry so it can be recreated from scratch.
func (workspace *Workspace) ResetEntry(name string) error {
	entryPath := workspace.Join(name)
	if removalError := workspace.fileSystem.RemoveAll(entryPath); removalError != nil && !errors.Is(removalError, os.ErrNotExist) {
		return fmt.Errorf(entryRemovalErrorTemplateConstant, entryPath, removalError)
	}
	return nil
}

// Release removes a temporary workspace. Removal failures are logged and never returned. Calling Release
// more than once is a no-op.
func (workspace *Workspace) Release() {
	if workspace == nil || workspace.released {
		return
	}
	workspace.released = true

	if workspace.persistent {
		workspace.logger.Debug(workspaceKeptMessageConstant, zap.String(logFieldWorkspacePathConstant, workspace.path))
		return
	}

	if removalError := workspace.fileSystem.RemoveAll(workspace.path); removalError != nil {
		workspace.logger.Warn(workspaceRemovalFailedMessageConstant,
			zap.String(logFieldWorkspacePathConstant, workspace.path),
			zap.Error(removalError),
		)
		return
	}
	workspace.logger.Debug(workspaceReleasedMessageConstant, zap.String(logFieldWorkspacePathConstant, workspace.path))
}
