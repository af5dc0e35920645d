package flags

import (
	"strings"

	"github.com/spf13/cobra"
)

const (
	// MigrateBranchFlagName names the flag selecting the branch that receives filtered history.
	MigrateBranchFlagName = "branch"
	// MigrateBranchFlagUsage describes the migrate branch flag.
	MigrateBranchFlagUsage = "Branch that receives the filtered history"
	// MainlineBranchFlagName names the flag selecting the destination mainline branch.
	MainlineBranchFlagName = "mainline"
	// MainlineBranchFlagUsage describes the mainline branch flag.
	MainlineBranchFlagUsage = "Destination mainline branch the history is rebased onto"
	// RemoteFlagName names the flag selecting the temporary remote.
	RemoteFlagName = "remote"
	// RemoteFlagUsage describes the temporary remote flag.
	RemoteFlagUsage = "Name of the temporary remote pointing at the filtered clone"
	// SourceBranchFlagName names the flag selecting the branch fetched from the filtered clone.
	SourceBranchFlagName = "source-branch"
	// SourceBranchFlagUsage describes the source branch flag.
	SourceBranchFlagUsage = "Branch of the source repository to extract (default: the cloned HEAD)"
)

// RefFlagDefinition captures configuration for a single ref-name flag.
type RefFlagDefinition struct {
	Name    string
	Usage   string
	Enabled bool
}

// RefFlagDefinitions groups the ref-name flags of a synchronization command.
type RefFlagDefinitions struct {
	MigrateBranch  RefFlagDefinition
	MainlineBranch RefFlagDefinition
	RemoteName     RefFlagDefinition
	SourceBranch   RefFlagDefinition
}

// RefFlagValues stores parsed ref-name flag values.
type RefFlagValues struct {
	MigrateBranch  string
	MainlineBranch string
	RemoteName     string
	SourceBranch   string
}

// DefaultRefFlagDefinitions enables every ref-name flag with its standard name.
func DefaultRefFlagDefinitions() RefFlagDefinitions {
	return RefFlagDefinitions{
		MigrateBranch:  RefFlagDefinition{Name: MigrateBranchFlagName, Usage: MigrateBranchFlagUsage, Enabled: true},
		MainlineBranch: RefFlagDefinition{Name: MainlineBranchFlagName, Usage: MainlineBranchFlagUsage, Enabled: true},
		RemoteName:     RefFlagDefinition{Name: RemoteFlagName, Usage: RemoteFlagUsage, Enabled: true},
		SourceBranch:   RefFlagDefinition{Name: SourceBranchFlagName, Usage: SourceBranchFlagUsage, Enabled: true},
	}
}

// BindRefFlags attaches ref-name flags to the provided command and returns the bound values.
func BindRefFlags(command *cobra.Command, defaults RefFlagValues, definitions RefFlagDefinitions) *RefFlagValues {
	values := defaults
	if command == nil {
		return &values
	}

	flagSet := command.Flags()
	bindings := []struct {
		definition   RefFlagDefinition
		target       *string
		defaultValue string
	}{
		{definition: definitions.MigrateBranch, target: &values.MigrateBranch, defaultValue: defaults.MigrateBranch},
		{definition: definitions.MainlineBranch, target: &values.MainlineBranch, defaultValue: defaults.MainlineBranch},
		{definition: definitions.RemoteName, target: &values.RemoteName, defaultValue: defaults.RemoteName},
		{definition: definitions.SourceBranch, target: &values.SourceBranch, defaultValue: defaults.SourceBranch},
	}
	for _, binding := range bindings {
		if !binding.definition.Enabled || len(binding.definition.Name) == 0 {
			continue
		}
		if flagSet.Lookup(binding.definition.Name) != nil {
			continue
		}
		flagSet.StringVar(binding.target, binding.definition.Name, binding.defaultValue, binding.definition.Usage)
	}

	return &values
}

// ChangedRefValues returns only the ref values explicitly set on the command line, trimmed.
func ChangedRefValues(command *cobra.Command, values *RefFlagValues, definitions RefFlagDefinitions) RefFlagValues {
	changed := RefFlagValues{}
	if command == nil || values == nil {
		return changed
	}
	flagSet := command.Flags()
	if definitions.MigrateBranch.Enabled && flagSet.Changed(definitions.MigrateBranch.Name) {
		changed.MigrateBranch = strings.TrimSpace(values.MigrateBranch)
	}
	if definitions.MainlineBranch.Enabled && flagSet.Changed(definitions.MainlineBranch.Name) {
		changed.MainlineBranch = strings.TrimSpace(values.MainlineBranch)
	}
	if definitions.RemoteName.Enabled && flagSet.Changed(definitions.RemoteName.Name) {
		changed.RemoteName = strings.TrimSpace(values.RemoteName)
	}
	if definitions.SourceBranch.Enabled && flagSet.Changed(definitions.SourceBranch.Name) {
		changed.SourceBranch = strings.TrimSpace(values.SourceBranch)
	}
	return changed
}
