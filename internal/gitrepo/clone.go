package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/mono2repo/internal/execshell"
)

const (
	gitCloneSubcommandConstant         = "clone"
	gitNoLocalFlagConstant             = "--no-local"
	gitBranchSelectionFlagConstant     = "--branch"
	cloneSourceRequiredMessageConstant = "clone source required"
	cloneErrorTemplateConstant         = "unable to clone %s into %s: %w"
)

// ErrCloneSourceRequired indicates an empty clone source.
var ErrCloneSourceRequired = errors.New(cloneSourceRequiredMessageConstant)

// CloneOptions configures Clone.
type CloneOptions struct {
	// NoLocal disables the hardlink shortcut for local sources so the clone is packed like a network clone.
	NoLocal bool
	// Branch checks out the named branch instead of the source HEAD.
	Branch string
	Policy execshell.ExecutionPolicy
}

// Clone clones source into destination and returns a handle on the new repository.
func Clone(executionContext context.Context, executor GitExecutor, source string, destination string, options CloneOptions) (*Repository, error) {
	repository, repositoryError := NewRepository(executor, destination)
	if repositoryError != nil {
		return nil, repositoryError
	}
	trimmedSource := strings.TrimSpace(source)
	if len(trimmedSource) == 0 {
		return nil, ErrCloneSourceRequired
	}

	cloneArguments := []string{gitCloneSubcommandConstant}
	if options.NoLocal {
		cloneArguments = append(cloneArguments, gitNoLocalFlagConstant)
	}
	if trimmedBranch := strings.TrimSpace(options.Branch); len(trimmedBranch) > 0 {
		cloneArguments = append(cloneArguments, gitBranchSelectionFlagConstant, trimmedBranch)
	}
	cloneArguments = append(cloneArguments, trimmedSource, repository.Worktree())

	if _, cloneError := executor.ExecuteGit(executionContext, execshell.CommandDetails{Arguments: cloneArguments, Policy: options.Policy}); cloneError != nil {
		return nil, fmt.Errorf(cloneErrorTemplateConstant, trimmedSource, repository.Worktree(), cloneError)
	}
	return repository, nil
}
