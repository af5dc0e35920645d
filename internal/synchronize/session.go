package synchronize

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/mono2repo/internal/execshell"
	"github.com/temirov/mono2repo/internal/gitrepo"
	"github.com/temirov/mono2repo/internal/locator"
	"github.com/temirov/mono2repo/internal/workspace"
)

// Session is the state of one synchronization run. It is owned by the Service for the duration of
// Execute and handed to the Protocol steps.
type Session struct {
	Locator     locator.Locator
	Workspace   *workspace.Workspace
	Legacy      *gitrepo.Repository
	Destination *gitrepo.Repository

	MainlineBranch string
	MigrateBranch  string
	RemoteName     string
	SourceBranch   string

	// InitialCommitDate is the anchor date of the destination mainline; only create sets it.
	InitialCommitDate string

	logger     *zap.Logger
	fileSystem afero.Fs
	policy     execshell.ExecutionPolicy
}

// DryRun reports whether mutating commands are skipped.
func (session *Session) DryRun() bool {
	return session.policy.DryRun
}

// Policy returns the execution policy for mutating commands of this run.
func (session *Session) Policy() execshell.ExecutionPolicy {
	return session.policy
}

// Logger returns the run logger.
func (session *Session) Logger() *zap.Logger {
	return session.logger
}

// DestinationInitialized reports whether the destination is a repository whose mainline branch exists.
// The metadata store is checked on disk first so that a plain directory nested inside another
// repository is never mistaken for an initialized destination.
func (session *Session) DestinationInitialized(executionContext context.Context) bool {
	metadataPresent, statError := afero.Exists(session.fileSystem, session.Destination.MetadataStore())
	if statError != nil || !metadataPresent {
		return false
	}
	return session.Destination.BranchExists(executionContext, session.MainlineBranch)
}

// TrackedReference returns the remote-tracking ref the migrate branch follows.
func (session *Session) TrackedReference() string {
	return session.RemoteName + "/" + session.SourceBranch
}
