package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/temirov/mono2repo/internal/execshell"
)

const (
	// DefaultMetadataDirectoryName is the metadata store directory inside a worktree.
	DefaultMetadataDirectoryName = ".git"

	gitDirectoryFlagConstant              = "--git-dir"
	gitWorkTreeFlagConstant               = "--work-tree"
	gitInitSubcommandConstant             = "init"
	gitSeparateGitDirFlagConstant         = "--separate-git-dir"
	gitCheckoutSubcommandConstant         = "checkout"
	gitCreateBranchFlagConstant           = "-b"
	gitStatusSubcommandConstant           = "status"
	gitShortFlagConstant                  = "--short"
	gitBranchFlagConstant                 = "--branch"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitVerifyFlagConstant                 = "--verify"
	gitQuietFlagConstant                  = "--quiet"
	gitSymbolicRefSubcommandConstant      = "symbolic-ref"
	gitHeadReferenceConstant              = "HEAD"
	localBranchReferencePrefixConstant    = "refs/heads/"
	executorNotConfiguredMessageConstant  = "git executor not configured"
	worktreeRequiredMessageConstant       = "repository worktree path required"
	repositoryDescriptionTemplateConstant = "%s (metadata %s)"
	initializeErrorTemplateConstant       = "unable to initialize repository %s: %w"
	initialBranchErrorTemplateConstant    = "unable to create initial branch %s in %s: %w"
)

var (
	// ErrExecutorNotConfigured indicates a nil GitExecutor was supplied.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrWorktreeRequired indicates an empty worktree path was supplied.
	ErrWorktreeRequired = errors.New(worktreeRequiredMessageConstant)
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Repository addresses one worktree and metadata store pair. It may describe a repository that does not
// exist yet; Init creates it.
type Repository struct {
	executor      GitExecutor
	worktree      string
	metadataStore string
}

// NewRepository constructs a Repository whose metadata store is the worktree's .git directory.
func NewRepository(executor GitExecutor, worktree string) (*Repository, error) {
	return NewRepositoryWithMetadataStore(executor, worktree, "")
}

// NewRepositoryWithMetadataStore constructs a Repository with an explicit metadata store. An empty
// metadataStore selects the default location.
func NewRepositoryWithMetadataStore(executor GitExecutor, worktree string, metadataStore string) (*Repository, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	trimmedWorktree := strings.TrimSpace(worktree)
	if len(trimmedWorktree) == 0 {
		return nil, ErrWorktreeRequired
	}

	cleanedWorktree := filepath.Clean(trimmedWorktree)
	resolvedMetadataStore := filepath.Join(cleanedWorktree, DefaultMetadataDirectoryName)
	if trimmedMetadataStore := strings.TrimSpace(metadataStore); len(trimmedMetadataStore) > 0 {
		resolvedMetadataStore = filepath.Clean(trimmedMetadataStore)
	}

	return &Repository{
		executor:      executor,
		worktree:      cleanedWorktree,
		metadataStore: resolvedMetadataStore,
	}, nil
}

// Worktree returns the working tree path.
func (repository *Repository) Worktree() string {
	return repository.worktree
}

// MetadataStore returns the metadata store path.
func (repository *Repository) MetadataStore() string {
	return repository.metadataStore
}

// String describes the repository for logs.
func (repository *Repository) String() string {
	if !repository.hasCustomMetadataStore() {
		return repository.worktree
	}
	return fmt.Sprintf(repositoryDescriptionTemplateConstant, repository.worktree, repository.metadataStore)
}

// Run executes a git command scoped to this repository and returns its trimmed standard output.
func (repository *Repository) Run(executionContext context.Context, arguments []string, policy execshell.ExecutionPolicy) (string, error) {
	return repository.RunWithEnvironment(executionContext, arguments, nil, policy)
}

// RunWithEnvironment is Run with additional environment variables for the git process.
func (repository *Repository) RunWithEnvironment(executionContext context.Context, arguments []string, environment map[string]string, policy execshell.ExecutionPolicy) (string, error) {
	result, executionError := repository.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            append(repository.scopeArguments(), arguments...),
		WorkingDirectory:     repository.worktree,
		EnvironmentVariables: environment,
		Policy:               policy,
	})
	if executionError != nil {
		return "", executionError
	}
	return result.StandardOutput, nil
}

// Check runs a best-effort probe. Failures, including a missing repository, are reported as absence.
func (repository *Repository) Check(executionContext context.Context, arguments ...string) (string, bool) {
	result, executionError := repository.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        append(repository.scopeArguments(), arguments...),
		WorkingDirectory: repository.worktree,
		Policy:           execshell.ExecutionPolicy{FailureMode: execshell.FailureModeTolerate, Silent: true},
	})
	if executionError != nil || result.Tolerated || result.DryRun {
		return "", false
	}
	return result.StandardOutput, true
}

// Status returns the short status with branch header, or false when it cannot be read.
func (repository *Repository) Status(executionContext context.Context) (string, bool) {
	return repository.Check(executionContext, gitStatusSubcommandConstant, gitShortFlagConstant, gitBranchFlagConstant)
}

// BranchExists reports whether the local branch exists.
func (repository *Repository) BranchExists(executionContext context.Context, branchName string) bool {
	_, exists := repository.Check(executionContext, gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, localBranchReferencePrefixConstant+branchName)
	return exists
}

// CurrentBranch returns the branch HEAD points at, or false for a detached or unreadable HEAD.
func (repository *Repository) CurrentBranch(executionContext context.Context) (string, bool) {
	branchName, available := repository.Check(executionContext, gitSymbolicRefSubcommandConstant, gitShortFlagConstant, gitHeadReferenceConstant)
	if !available || len(strings.TrimSpace(branchName)) == 0 {
		return "", false
	}
	return strings.TrimSpace(branchName), true
}

// Init initializes the repository, creating the worktree directory when absent, and switches to
// initialBranch when it is not empty. Re-initializing an existing repository is harmless to git.
func (repository *Repository) Init(executionContext context.Context, initialBranch string, policy execshell.ExecutionPolicy) error {
	initArguments := []string{gitInitSubcommandConstant}
	if repository.hasCustomMetadataStore() {
		initArguments = append(initArguments, gitSeparateGitDirFlagConstant, repository.metadataStore)
	}
	initArguments = append(initArguments, repository.worktree)

	// git init creates the worktree itself, so it runs from the current directory.
	if _, initError := repository.executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: initArguments, Policy: policy}); initError != nil {
		return fmt.Errorf(initializeErrorTemplateConstant, repository, initError)
	}

	trimmedBranch := strings.TrimSpace(initialBranch)
	if len(trimmedBranch) == 0 {
		return nil
	}
	if _, checkoutError := repository.Run(executionContext, []string{gitCheckoutSubcommandConstant, gitCreateBranchFlagConstant, trimmedBranch}, policy); checkoutError != nil {
		return fmt.Errorf(initialBranchErrorTemplateConstant, trimmedBranch, repository, checkoutError)
	}
	return nil
}

func (repository *Repository) hasCustomMetadataStore() bool {
	return repository.metadataStore != filepath.Join(repository.worktree, DefaultMetadataDirectoryName)
}

func (repository *Repository) scopeArguments() []string {
	if !repository.hasCustomMetadataStore() {
		return nil
	}
	return []string{gitDirectoryFlagConstant, repository.metadataStore, gitWorkTreeFlagConstant, repository.worktree}
}
