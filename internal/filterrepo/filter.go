// Package filterrepo drives git filter-repo to reduce a disposable clone to the
// history of one subdirectory, re-rooted at the repository top level.
package filterrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/mono2repo/internal/execshell"
	"github.com/temirov/mono2repo/internal/gitrepo"
)

const (
	filterRepoSubcommandConstant      = "filter-repo"
	versionFlagConstant               = "--version"
	pathFlagConstant                  = "--path"
	pathRenameFlagConstant            = "--path-rename"
	pathRenameSeparatorConstant       = ":"
	subdirectorySuffixConstant        = "/"
	pluginNotInstalledMessageConstant = "git filter-repo is not installed"
	repositoryRequiredMessageConstant = "repository required for history filtering"
	pluginProbeErrorTemplateConstant  = "%w: %w"
	filterErrorTemplateConstant       = "unable to filter %s down to %s: %w"
)

var (
	// ErrPluginNotInstalled indicates git filter-repo is unavailable.
	ErrPluginNotInstalled = errors.New(pluginNotInstalledMessageConstant)
	// ErrRepositoryRequired indicates Apply was called without a repository.
	ErrRepositoryRequired = errors.New(repositoryRequiredMessageConstant)
)

// EnsureInstalled probes git filter-repo and returns its reported version. The probe runs even in
// dry-run mode so that a missing plugin is reported before any work.
func EnsureInstalled(executionContext context.Context, executor gitrepo.GitExecutor) (string, error) {
	if executor == nil {
		return "", gitrepo.ErrExecutorNotConfigured
	}
	result, probeError := executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{filterRepoSubcommandConstant, versionFlagConstant},
		Policy:    execshell.ExecutionPolicy{Silent: true},
	})
	if probeError != nil {
		return "", fmt.Errorf(pluginProbeErrorTemplateConstant, ErrPluginNotInstalled, probeError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// Arguments returns the filter-repo arguments keeping subdirectory and renaming it to the root.
func Arguments(subdirectory string) []string {
	includedPath := strings.Trim(subdirectory, subdirectorySuffixConstant) + subdirectorySuffixConstant
	return []string{
		filterRepoSubcommandConstant,
		pathFlagConstant, includedPath,
		pathRenameFlagConstant, includedPath + pathRenameSeparatorConstant,
	}
}

// Apply rewrites the repository history in place so only subdirectory remains, moved to the root. The
// rewrite is destructive: repository must be a disposable clone. An empty subdirectory keeps the whole
// history and runs nothing.
func Apply(executionContext context.Context, repository *gitrepo.Repository, subdirectory string, policy execshell.ExecutionPolicy) error {
	if repository == nil {
		return ErrRepositoryRequired
	}
	if len(strings.Trim(subdirectory, subdirectorySuffixConstant)) == 0 {
		return nil
	}
	if _, filterError := repository.Run(executionContext, Arguments(subdirectory), policy); filterError != nil {
		return fmt.Errorf(filterErrorTemplateConstant, repository, subdirectory, filterError)
	}
	return nil
}
