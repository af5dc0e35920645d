package synchronize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/mono2repo/internal/execshell"
	"github.com/temirov/mono2repo/internal/filterrepo"
	"github.com/temirov/mono2repo/internal/gitrepo"
	"github.com/temirov/mono2repo/internal/locator"
	"github.com/temirov/mono2repo/internal/locking"
	"github.com/temirov/mono2repo/internal/workspace"
)

const (
	// DefaultMainlineBranch names the destination mainline branch.
	DefaultMainlineBranch = "master"
	// DefaultMigrateBranch names the branch receiving the filtered history.
	DefaultMigrateBranch = "migrate"
	// DefaultRemoteName names the temporary remote pointing at the filtered clone.
	DefaultRemoteName = "legacy"
	// LegacyCloneDirectoryName is the scratch clone directory inside the workspace.
	LegacyCloneDirectoryName = "legacy-repo"

	gitRemoteSubcommandConstant          = "remote"
	gitRemoteAddSubcommandConstant       = "add"
	gitRemoteRemoveSubcommandConstant    = "remove"
	gitFetchSubcommandConstant           = "fetch"
	gitRebaseSubcommandConstant          = "rebase"
	gitCommitterDateIsAuthorDateConstant = "--committer-date-is-author-date"
	gitRevParseSubcommandConstant        = "rev-parse"
	gitVerifyFlagConstant                = "--verify"
	gitQuietFlagConstant                 = "--quiet"
	gitHeadReferenceConstant             = "HEAD"
	localBranchReferencePrefixConstant   = "refs/heads/"
	executorMissingMessageConstant       = "git executor not configured"
	locatorErrorTemplateConstant         = "unable to resolve source %q: %w"
	destinationPathErrorTemplateConstant = "unable to resolve destination %q: %w"
	workspaceErrorTemplateConstant       = "unable to prepare workspace: %w"
	remoteAddErrorTemplateConstant       = "unable to attach remote %s: %w"
	remoteRemoveErrorTemplateConstant    = "unable to remove remote %s: %w"
	fetchErrorTemplateConstant           = "unable to fetch %s from %s: %w"
	rebaseErrorTemplateConstant          = "%w: %s onto %s: %w"
	lockReleaseFailedMessageConstant     = "Destination lock release failed"
	toolVersionsMessageConstant          = "Tool versions"
	sourceResolvedMessageConstant        = "Source resolved"
	sourceBranchMessageConstant          = "Source branch selected"
	destinationStatusMessageConstant     = "Destination status"
	logFieldGitVersionConstant           = "git_version"
	logFieldFilterRepoVersionConstant    = "filter_repo_version"
	logFieldSourceRootConstant           = "source_root"
	logFieldSubdirectoryConstant         = "subdirectory"
	logFieldRemoteSourceConstant         = "remote_source"
	logFieldSourceBranchConstant         = "source_branch"
	logFieldStatusConstant               = "status"
)

var errExecutorMissing = errors.New(executorMissingMessageConstant)

// LocatorResolver turns a source string into a repository root and subdirectory.
type LocatorResolver interface {
	Resolve(input string) (locator.Locator, error)
}

// DestinationLock is held for the duration of a run.
type DestinationLock interface {
	Release() error
}

// DestinationLocker acquires the lock guarding a destination path.
type DestinationLocker func(destination string) (DestinationLock, error)

// Synchronizer runs one synchronization protocol.
type Synchronizer interface {
	Execute(executionContext context.Context, protocol Protocol, options Options) (Result, error)
}

// ServiceDependencies describes required collaborators for synchronization.
type ServiceDependencies struct {
	Logger          *zap.Logger
	GitExecutor     gitrepo.GitExecutor
	FileSystem      afero.Fs
	LocatorResolver LocatorResolver
	Locker          DestinationLocker
}

// Options configures one run.
type Options struct {
	Source         string
	Destination    string
	WorkspacePath  string
	MainlineBranch string
	MigrateBranch  string
	RemoteName     string
	// SourceBranch selects the branch to extract; empty selects the cloned HEAD branch.
	SourceBranch    string
	DryRun          bool
	LockDestination bool
}

// Result captures the observable outcome of a run.
type Result struct {
	Protocol          ProtocolName
	Locator           locator.Locator
	Destination       string
	SourceBranch      string
	InitialCommitDate string
	// MigrateHead is the migrate branch tip after the run; empty when it cannot be read.
	MigrateHead string
	DryRun      bool
}

// Service orchestrates the clone, filter and rebase backbone shared by every protocol.
type Service struct {
	logger          *zap.Logger
	gitExecutor     gitrepo.GitExecutor
	fileSystem      afero.Fs
	locatorResolver LocatorResolver
	locker          DestinationLocker
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.GitExecutor == nil {
		return nil, errExecutorMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	locatorResolver := dependencies.LocatorResolver
	if locatorResolver == nil {
		locatorResolver = locator.NewResolverWithFileSystem(fileSystem, nil)
	}
	locker := dependencies.Locker
	if locker == nil {
		locker = acquireDestinationLock
	}

	return &Service{
		logger:          logger,
		gitExecutor:     dependencies.GitExecutor,
		fileSystem:      fileSystem,
		locatorResolver: locatorResolver,
		locker:          locker,
	}, nil
}

// Execute performs one synchronization run with the given protocol.
func (service *Service) Execute(executionContext context.Context, protocol Protocol, options Options) (Result, error) {
	if protocol == nil {
		return Result{}, InvalidInputError{FieldName: protocolFieldNameConstant, Message: requiredValueMessageConstant}
	}
	normalizedOptions, validationError := service.normalizeOptions(options)
	if validationError != nil {
		return Result{}, validationError
	}

	sourceLocator, locatorError := service.locatorResolver.Resolve(normalizedOptions.Source)
	if locatorError != nil {
		return Result{}, fmt.Errorf(locatorErrorTemplateConstant, normalizedOptions.Source, locatorError)
	}
	service.logger.Debug(sourceResolvedMessageConstant,
		zap.String(logFieldSourceRootConstant, sourceLocator.Root),
		zap.String(logFieldSubdirectoryConstant, sourceLocator.Subdirectory),
		zap.Bool(logFieldRemoteSourceConstant, sourceLocator.Remote),
	)

	if probeError := service.probeTools(executionContext); probeError != nil {
		return Result{}, probeError
	}

	destination, destinationError := gitrepo.NewRepository(service.gitExecutor, normalizedOptions.Destination)
	if destinationError != nil {
		return Result{}, destinationError
	}

	session := &Session{
		Locator:        sourceLocator,
		Destination:    destination,
		MainlineBranch: normalizedOptions.MainlineBranch,
		MigrateBranch:  normalizedOptions.MigrateBranch,
		RemoteName:     normalizedOptions.RemoteName,
		SourceBranch:   normalizedOptions.SourceBranch,
		logger:         service.logger,
		fileSystem:     service.fileSystem,
		policy:         execshell.ExecutionPolicy{DryRun: normalizedOptions.DryRun},
	}
	result := Result{
		Protocol:    protocol.Name(),
		Locator:     sourceLocator,
		Destination: destination.Worktree(),
		DryRun:      normalizedOptions.DryRun,
	}

	if normalizedOptions.LockDestination && !normalizedOptions.DryRun {
		destinationLock, lockError := service.locker(destination.Worktree())
		if lockError != nil {
			return result, lockError
		}
		defer service.releaseLock(destinationLock)
	}

	if checkError := protocol.CheckDestination(executionContext, session); checkError != nil {
		return result, checkError
	}

	scratchWorkspace, workspaceError := workspace.Acquire(service.logger, service.fileSystem, normalizedOptions.WorkspacePath)
	if workspaceError != nil {
		return result, fmt.Errorf(workspaceErrorTemplateConstant, workspaceError)
	}
	defer scratchWorkspace.Release()
	session.Workspace = scratchWorkspace

	if prepareError := service.prepareLegacy(executionContext, session); prepareError != nil {
		return result, prepareError
	}
	result.SourceBranch = session.SourceBranch

	if initializeError := protocol.InitializeDestination(executionContext, session); initializeError != nil {
		return result, initializeError
	}
	result.InitialCommitDate = session.InitialCommitDate

	if attachError := service.attachRemote(executionContext, session); attachError != nil {
		return result, attachError
	}
	integrationError := service.integrate(executionContext, protocol, session)
	removalError := service.detachRemote(executionContext, session)
	if combinedError := errors.Join(integrationError, removalError); combinedError != nil {
		return result, combinedError
	}

	if session.DryRun() {
		return result, nil
	}
	result.MigrateHead = service.readMigrateHead(executionContext, session)
	if status, available := session.Destination.Status(executionContext); available {
		service.logger.Debug(destinationStatusMessageConstant, zap.String(logFieldStatusConstant, status))
	}
	return result, nil
}

func (service *Service) normalizeOptions(options Options) (Options, error) {
	normalized := Options{
		Source:          strings.TrimSpace(options.Source),
		WorkspacePath:   strings.TrimSpace(options.WorkspacePath),
		MainlineBranch:  defaultWhenEmpty(options.MainlineBranch, DefaultMainlineBranch),
		MigrateBranch:   defaultWhenEmpty(options.MigrateBranch, DefaultMigrateBranch),
		RemoteName:      defaultWhenEmpty(options.RemoteName, DefaultRemoteName),
		SourceBranch:    strings.TrimSpace(options.SourceBranch),
		DryRun:          options.DryRun,
		LockDestination: options.LockDestination,
	}

	trimmedDestination := strings.TrimSpace(options.Destination)
	if len(trimmedDestination) == 0 {
		return Options{}, InvalidInputError{FieldName: destinationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	absoluteDestination, absoluteError := filepath.Abs(trimmedDestination)
	if absoluteError != nil {
		return Options{}, fmt.Errorf(destinationPathErrorTemplateConstant, trimmedDestination, absoluteError)
	}
	normalized.Destination = absoluteDestination

	if normalized.MigrateBranch == normalized.MainlineBranch {
		return Options{}, InvalidInputError{FieldName: migrateBranchFieldNameConstant, Message: sameBranchesMessageConstant}
	}
	return normalized, nil
}

func (service *Service) probeTools(executionContext context.Context) error {
	gitVersion, versionError := gitrepo.EnsureSupportedVersion(executionContext, service.gitExecutor)
	if versionError != nil {
		return versionError
	}
	filterRepoVersion, pluginError := filterrepo.EnsureInstalled(executionContext, service.gitExecutor)
	if pluginError != nil {
		return pluginError
	}
	service.logger.Debug(toolVersionsMessageConstant,
		zap.String(logFieldGitVersionConstant, strings.TrimSpace(gitVersion)),
		zap.String(logFieldFilterRepoVersionConstant, filterRepoVersion),
	)
	return nil
}

// prepareLegacy clones the source afresh into the workspace, settles the source branch and filters the
// clone down to the subdirectory.
func (service *Service) prepareLegacy(executionContext context.Context, session *Session) error {
	if !session.DryRun() {
		if resetError := session.Workspace.ResetEntry(LegacyCloneDirectoryName); resetError != nil {
			return fmt.Errorf(workspaceErrorTemplateConstant, resetError)
		}
	}

	legacy, cloneError := gitrepo.Clone(executionContext, service.gitExecutor, session.Locator.Root, session.Workspace.Join(LegacyCloneDirectoryName), gitrepo.CloneOptions{
		NoLocal: !session.Locator.Remote,
		Branch:  session.SourceBranch,
		Policy:  session.Policy(),
	})
	if cloneError != nil {
		return cloneError
	}
	session.Legacy = legacy

	if len(session.SourceBranch) == 0 {
		session.SourceBranch = DefaultMainlineBranch
		if !session.DryRun() {
			if currentBranch, available := legacy.CurrentBranch(executionContext); available {
				session.SourceBranch = currentBranch
			}
		}
	}
	service.logger.Debug(sourceBranchMessageConstant, zap.String(logFieldSourceBranchConstant, session.SourceBranch))

	if filterError := filterrepo.Apply(executionContext, legacy, session.Locator.Subdirectory, session.Policy()); filterError != nil {
		return filterError
	}

	if session.DryRun() {
		return nil
	}
	if _, hasHistory := legacy.Check(executionContext, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant); !hasHistory {
		return fmt.Errorf(emptyHistoryTemplateConstant, ErrEmptyHistory, legacy)
	}
	return nil
}

func (service *Service) attachRemote(executionContext context.Context, session *Session) error {
	addArguments := []string{gitRemoteSubcommandConstant, gitRemoteAddSubcommandConstant, session.RemoteName, session.Legacy.Worktree()}
	if _, addError := session.Destination.Run(executionContext, addArguments, session.Policy()); addError != nil {
		return fmt.Errorf(remoteAddErrorTemplateConstant, session.RemoteName, addError)
	}
	return nil
}

// integrate fetches the filtered history, prepares the migrate branch and rebases it onto the mainline.
func (service *Service) integrate(executionContext context.Context, protocol Protocol, session *Session) error {
	fetchArguments := []string{gitFetchSubcommandConstant, session.RemoteName, session.SourceBranch}
	if _, fetchError := session.Destination.Run(executionContext, fetchArguments, session.Policy()); fetchError != nil {
		return fmt.Errorf(fetchErrorTemplateConstant, session.SourceBranch, session.RemoteName, fetchError)
	}

	if prepareError := protocol.PrepareBranch(executionContext, session); prepareError != nil {
		return prepareError
	}

	rebaseArguments := []string{gitRebaseSubcommandConstant, gitCommitterDateIsAuthorDateConstant, session.MainlineBranch}
	if _, rebaseError := session.Destination.Run(executionContext, rebaseArguments, session.Policy()); rebaseError != nil {
		return fmt.Errorf(rebaseErrorTemplateConstant, ErrRebaseFailed, session.MigrateBranch, session.MainlineBranch, rebaseError)
	}
	return nil
}

// detachRemote always runs once the remote is attached, including after the run was cancelled; its
// failure is reported alongside any integration failure.
func (service *Service) detachRemote(executionContext context.Context, session *Session) error {
	removeArguments := []string{gitRemoteSubcommandConstant, gitRemoteRemoveSubcommandConstant, session.RemoteName}
	if _, removeError := session.Destination.Run(context.WithoutCancel(executionContext), removeArguments, session.Policy()); removeError != nil {
		return fmt.Errorf(remoteRemoveErrorTemplateConstant, session.RemoteName, removeError)
	}
	return nil
}

func (service *Service) readMigrateHead(executionContext context.Context, session *Session) string {
	migrateHead, available := session.Destination.Check(executionContext, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, localBranchReferencePrefixConstant+session.MigrateBranch)
	if !available {
		return ""
	}
	return strings.TrimSpace(migrateHead)
}

func (service *Service) releaseLock(destinationLock DestinationLock) {
	if destinationLock == nil {
		return
	}
	if releaseError := destinationLock.Release(); releaseError != nil {
		service.logger.Warn(lockReleaseFailedMessageConstant, zap.Error(releaseError))
	}
}

func acquireDestinationLock(destination string) (DestinationLock, error) {
	destinationLock, lockError := locking.Acquire(destination)
	if lockError != nil {
		return nil, lockError
	}
	return destinationLock, nil
}

func defaultWhenEmpty(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}
