package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/mod/semver"

	"github.com/temirov/mono2repo/internal/execshell"
)

const (
	// MinimumGitVersion is the oldest git release supported by git filter-repo.
	MinimumGitVersion = "2.22.0"

	gitVersionFlagConstant               = "--version"
	semanticVersionPrefixConstant        = "v"
	unsupportedGitVersionMessageConstant = "unsupported git version"
	unparseableVersionTemplateConstant   = "unable to parse version from %q"
	unsupportedVersionTemplateConstant   = "%w: found %s, need %s or newer"
	versionProbeErrorTemplateConstant    = "unable to determine git version: %w"
)

var (
	// ErrUnsupportedGitVersion indicates the installed git is older than MinimumGitVersion.
	ErrUnsupportedGitVersion = errors.New(unsupportedGitVersionMessageConstant)

	toolVersionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)
)

// ParseToolVersion extracts the first dotted version from tool output such as
// "git version 2.39.3 (Apple Git-146)" and returns it in canonical semver form ("v2.39.3").
func ParseToolVersion(output string) (string, error) {
	matches := toolVersionPattern.FindStringSubmatch(output)
	if matches == nil {
		return "", fmt.Errorf(unparseableVersionTemplateConstant, output)
	}
	patch := matches[3]
	if len(patch) == 0 {
		patch = "0"
	}
	return semver.Canonical(fmt.Sprintf("%s%s.%s.%s", semanticVersionPrefixConstant, matches[1], matches[2], patch)), nil
}

// RequireMinimumVersion fails with ErrUnsupportedGitVersion when version is older than minimum. Both
// accept any text ParseToolVersion understands.
func RequireMinimumVersion(version string, minimum string) error {
	parsedVersion, versionError := ParseToolVersion(version)
	if versionError != nil {
		return versionError
	}
	parsedMinimum, minimumError := ParseToolVersion(minimum)
	if minimumError != nil {
		return minimumError
	}
	if semver.Compare(parsedVersion, parsedMinimum) < 0 {
		return fmt.Errorf(unsupportedVersionTemplateConstant, ErrUnsupportedGitVersion, parsedVersion, parsedMinimum)
	}
	return nil
}

// EnsureSupportedVersion probes git --version and checks it against MinimumGitVersion. The probe runs
// even in dry-run mode; it returns the raw version output.
func EnsureSupportedVersion(executionContext context.Context, executor GitExecutor) (string, error) {
	if executor == nil {
		return "", ErrExecutorNotConfigured
	}
	result, probeError := executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitVersionFlagConstant},
		Policy:    execshell.ExecutionPolicy{Silent: true},
	})
	if probeError != nil {
		return "", fmt.Errorf(versionProbeErrorTemplateConstant, probeError)
	}
	if requirementError := RequireMinimumVersion(result.StandardOutput, MinimumGitVersion); requirementError != nil {
		return result.StandardOutput, requirementError
	}
	return result.StandardOutput, nil
}
