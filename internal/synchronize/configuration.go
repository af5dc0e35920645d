package synchronize

import (
	"strings"

	pathutils "github.com/temirov/mono2repo/internal/utils/path"
)

const (
	configurationMainlineBranchKeyConstant  = "mainline_branch"
	configurationMigrateBranchKeyConstant   = "migrate_branch"
	configurationRemoteNameKeyConstant      = "remote_name"
	configurationSourceBranchKeyConstant    = "source_branch"
	configurationWorkspaceKeyConstant       = "workspace"
	configurationDryRunKeyConstant          = "dry_run"
	configurationLockDestinationKeyConstant = "lock_destination"
	configurationKeySeparatorConstant       = "."
)

var synchronizeConfigurationHomeExpander = pathutils.NewHomeExpander()

// CommandConfiguration captures persisted configuration for the create and update commands.
type CommandConfiguration struct {
	MainlineBranch  string `mapstructure:"mainline_branch"`
	MigrateBranch   string `mapstructure:"migrate_branch"`
	RemoteName      string `mapstructure:"remote_name"`
	SourceBranch    string `mapstructure:"source_branch"`
	Workspace       string `mapstructure:"workspace"`
	DryRun          bool   `mapstructure:"dry_run"`
	LockDestination bool   `mapstructure:"lock_destination"`
}

// DefaultCommandConfiguration returns baseline configuration values for synchronization.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		MainlineBranch:  DefaultMainlineBranch,
		MigrateBranch:   DefaultMigrateBranch,
		RemoteName:      DefaultRemoteName,
		SourceBranch:    "",
		Workspace:       "",
		DryRun:          false,
		LockDestination: true,
	}
}

// DefaultConfigurationValues returns the defaults keyed for a configuration loader under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	keyPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), configurationKeySeparatorConstant)
	if len(keyPrefix) > 0 {
		keyPrefix += configurationKeySeparatorConstant
	}
	return map[string]any{
		keyPrefix + configurationMainlineBranchKeyConstant:  defaults.MainlineBranch,
		keyPrefix + configurationMigrateBranchKeyConstant:   defaults.MigrateBranch,
		keyPrefix + configurationRemoteNameKeyConstant:      defaults.RemoteName,
		keyPrefix + configurationSourceBranchKeyConstant:    defaults.SourceBranch,
		keyPrefix + configurationWorkspaceKeyConstant:       defaults.Workspace,
		keyPrefix + configurationDryRunKeyConstant:          defaults.DryRun,
		keyPrefix + configurationLockDestinationKeyConstant: defaults.LockDestination,
	}
}

// Sanitize trims configured values, restores default ref names and expands a home-relative workspace.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.MainlineBranch = defaultWhenEmpty(configuration.MainlineBranch, DefaultMainlineBranch)
	sanitized.MigrateBranch = defaultWhenEmpty(configuration.MigrateBranch, DefaultMigrateBranch)
	sanitized.RemoteName = defaultWhenEmpty(configuration.RemoteName, DefaultRemoteName)
	sanitized.SourceBranch = strings.TrimSpace(configuration.SourceBranch)
	sanitized.Workspace = synchronizeConfigurationHomeExpander.Expand(strings.TrimSpace(configuration.Workspace))
	return sanitized
}
