package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
	fallbackUnknownValueLabelConstant       = "unknown"
	gitDirectoryFlagConstant                = "--git-dir"
	gitWorkTreeFlagConstant                 = "--work-tree"
)

const (
	gitCloneSubcommandNameConstant      = "clone"
	gitInitSubcommandNameConstant       = "init"
	gitCommitSubcommandNameConstant     = "commit"
	gitRemoteSubcommandNameConstant     = "remote"
	gitRemoteAddSubcommandNameConstant  = "add"
	gitFetchSubcommandNameConstant      = "fetch"
	gitCheckoutSubcommandNameConstant   = "checkout"
	gitRebaseSubcommandNameConstant     = "rebase"
	gitFilterRepoSubcommandNameConstant = "filter-repo"
	gitMessageFlagConstant              = "-m"
	gitPathFlagConstant                 = "--path"
)

const (
	gitCloneStartTemplateConstant                   = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant                 = "Cloned %s into %s"
	gitCloneFailureTemplateConstant                 = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant        = "Unable to clone %s into %s: %s"
	gitInitStartTemplateConstant                    = "Initializing repository in %s"
	gitInitSuccessTemplateConstant                  = "Initialized repository in %s"
	gitInitFailureTemplateConstant                  = "Failed to initialize repository in %s (exit code %d%s)"
	gitInitExecutionFailureTemplateConstant         = "Unable to initialize repository in %s: %s"
	gitCommitStartTemplateConstant                  = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant                = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant                = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant       = "Unable to create commit in %s with message %q: %s"
	gitRemoteAddStartTemplateConstant               = "Adding %s remote for %s"
	gitRemoteAddSuccessTemplateConstant             = "Added %s remote for %s"
	gitRemoteAddFailureTemplateConstant             = "Failed to add %s remote for %s (exit code %d%s)"
	gitRemoteAddExecutionFailureTemplateConstant    = "Unable to add %s remote for %s: %s"
	gitRemoteRemoveStartTemplateConstant            = "Removing %s remote from %s"
	gitRemoteRemoveSuccessTemplateConstant          = "Removed %s remote from %s"
	gitRemoteRemoveFailureTemplateConstant          = "Failed to remove %s remote from %s (exit code %d%s)"
	gitRemoteRemoveExecutionFailureTemplateConstant = "Unable to remove %s remote from %s: %s"
	gitFetchStartTemplateConstant                   = "Fetching %s from %s in %s"
	gitFetchWithoutRefsStartTemplateConstant        = "Fetching from %s in %s"
	gitFetchSuccessTemplateConstant                 = "Fetched %s from %s in %s"
	gitFetchWithoutRefsSuccessTemplateConstant      = "Fetched from %s in %s"
	gitFetchFailureTemplateConstant                 = "Failed to fetch %s from %s in %s (exit code %d%s)"
	gitFetchExecutionFailureTemplateConstant        = "Unable to fetch %s from %s in %s: %s"
	gitFetchAllRemotesLabelConstant                 = "all remotes"
	gitCheckoutStartTemplateConstant                = "Switching %s to branch %s"
	gitCheckoutSuccessTemplateConstant              = "%s now on branch %s"
	gitCheckoutFailureTemplateConstant              = "Failed to switch %s to branch %s (exit code %d%s)"
	gitCheckoutExecutionFailureTemplateConstant     = "Unable to switch %s to branch %s: %s"
	gitRebaseStartTemplateConstant                  = "Rebasing current branch of %s onto %s"
	gitRebaseSuccessTemplateConstant                = "Rebased current branch of %s onto %s"
	gitRebaseFailureTemplateConstant                = "Failed to rebase current branch of %s onto %s (exit code %d%s)"
	gitRebaseExecutionFailureTemplateConstant       = "Unable to rebase current branch of %s onto %s: %s"
	gitFilterRepoStartTemplateConstant              = "Filtering history of %s down to %s"
	gitFilterRepoSuccessTemplateConstant            = "Filtered history of %s down to %s"
	gitFilterRepoFailureTemplateConstant            = "Failed to filter history of %s down to %s (exit code %d%s)"
	gitFilterRepoExecutionFailureTemplateConstant   = "Unable to filter history of %s down to %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGit {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
	return formatter.describeGitMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	arguments := stripRepositoryScope(command.Details.Arguments)
	if len(arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(arguments[0])
	switch subcommand {
	case gitCloneSubcommandNameConstant:
		nonFlagArguments := nonFlagArguments(arguments[1:])
		source := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 0))
		destination := formatter.ensureValue(formatter.argumentAtIndex(nonFlagArguments, 1))
		return formatter.selectMessage(stage, result, failure,
			gitCloneStartTemplateConstant, gitCloneSuccessTemplateConstant, gitCloneFailureTemplateConstant, gitCloneExecutionFailureTemplateConstant,
			source, destination)
	case gitInitSubcommandNameConstant:
		return formatter.selectMessage(stage, result, failure,
			gitInitStartTemplateConstant, gitInitSuccessTemplateConstant, gitInitFailureTemplateConstant, gitInitExecutionFailureTemplateConstant,
			workingDirectory)
	case gitCommitSubcommandNameConstant:
		commitMessage := findFlagValue(arguments, gitMessageFlagConstant)
		return formatter.selectMessage(stage, result, failure,
			gitCommitStartTemplateConstant, gitCommitSuccessTemplateConstant, gitCommitFailureTemplateConstant, gitCommitExecutionFailureTemplateConstant,
			workingDirectory, formatter.ensureValue(commitMessage))
	case gitRemoteSubcommandNameConstant:
		return formatter.describeGitRemoteMessage(command, arguments, result, failure, stage)
	case gitFetchSubcommandNameConstant:
		return formatter.describeGitFetchMessage(command, arguments, result, failure, stage)
	case gitCheckoutSubcommandNameConstant:
		branchName := formatter.extractCheckoutBranch(arguments[1:])
		return formatter.selectMessage(stage, result, failure,
			gitCheckoutStartTemplateConstant, gitCheckoutSuccessTemplateConstant, gitCheckoutFailureTemplateConstant, gitCheckoutExecutionFailureTemplateConstant,
			workingDirectory, formatter.ensureValue(branchName))
	case gitRebaseSubcommandNameConstant:
		upstream := formatter.argumentAtIndex(nonFlagArguments(arguments[1:]), 0)
		return formatter.selectMessage(stage, result, failure,
			gitRebaseStartTemplateConstant, gitRebaseSuccessTemplateConstant, gitRebaseFailureTemplateConstant, gitRebaseExecutionFailureTemplateConstant,
			workingDirectory, formatter.ensureValue(upstream))
	case gitFilterRepoSubcommandNameConstant:
		filteredPath := findFlagValue(arguments, gitPathFlagConstant)
		if len(filteredPath) == 0 {
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
		return formatter.selectMessage(stage, result, failure,
			gitFilterRepoStartTemplateConstant, gitFilterRepoSuccessTemplateConstant, gitFilterRepoFailureTemplateConstant, gitFilterRepoExecutionFailureTemplateConstant,
			workingDirectory, filteredPath)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitRemoteMessage(command ShellCommand, arguments []string, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	action := formatter.argumentAtIndex(arguments, 1)
	remoteName := formatter.ensureValue(formatter.argumentAtIndex(arguments, 2))
	switch action {
	case gitRemoteAddSubcommandNameConstant:
		return formatter.selectMessage(stage, result, failure,
			gitRemoteAddStartTemplateConstant, gitRemoteAddSuccessTemplateConstant, gitRemoteAddFailureTemplateConstant, gitRemoteAddExecutionFailureTemplateConstant,
			remoteName, workingDirectory)
	case "remove", "rm":
		return formatter.selectMessage(stage, result, failure,
			gitRemoteRemoveStartTemplateConstant, gitRemoteRemoveSuccessTemplateConstant, gitRemoteRemoveFailureTemplateConstant, gitRemoteRemoveExecutionFailureTemplateConstant,
			remoteName, workingDirectory)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) describeGitFetchMessage(command ShellCommand, arguments []string, result ExecutionResult, failure error, stage messageStage) string {
	workingDirectory := formatter.describeWorkingDirectory(command)
	remoteAndReferences := nonFlagArguments(arguments[1:])
	remoteName := formatter.argumentAtIndex(remoteAndReferences, 0)
	if len(remoteName) == 0 {
		remoteName = gitFetchAllRemotesLabelConstant
	}
	joinedReferences := emptyStringConstant
	if len(remoteAndReferences) > 1 {
		joinedReferences = strings.Join(remoteAndReferences[1:], ", ")
	}

	if len(joinedReferences) == 0 {
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitFetchWithoutRefsStartTemplateConstant, remoteName, workingDirectory)
		case messageStageSuccess:
			return fmt.Sprintf(gitFetchWithoutRefsSuccessTemplateConstant, remoteName, workingDirectory)
		default:
			return formatter.buildGenericMessage(command, result, failure, stage)
		}
	}

	return formatter.selectMessage(stage, result, failure,
		gitFetchStartTemplateConstant, gitFetchSuccessTemplateConstant, gitFetchFailureTemplateConstant, gitFetchExecutionFailureTemplateConstant,
		joinedReferences, remoteName, workingDirectory)
}

// selectMessage renders the template for the stage. Failure templates receive the exit code and
// standard error suffix after the subjects; execution failure templates receive the failure text.
func (formatter CommandMessageFormatter) selectMessage(stage messageStage, result ExecutionResult, failure error, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string, subjects ...string) string {
	values := make([]any, 0, len(subjects)+2)
	for _, subject := range subjects {
		values = append(values, subject)
	}
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, values...)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, values...)
	case messageStageFailure:
		values = append(values, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		return fmt.Sprintf(failureTemplate, values...)
	case messageStageExecutionFailure:
		values = append(values, formatter.describeFailure(failure))
		return fmt.Sprintf(executionFailureTemplate, values...)
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = fmt.Sprintf("%s %s", commandLabel, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// describeWorkingDirectory prefers the explicit --work-tree over the process directory.
func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	if workTree := findFlagValue(command.Details.Arguments, gitWorkTreeFlagConstant); len(workTree) > 0 {
		return workTree
	}
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index >= 0 && index < len(arguments) {
		return strings.TrimSpace(arguments[index])
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

// extractCheckoutBranch returns the value following -b/-B, or the first non-flag argument.
func (formatter CommandMessageFormatter) extractCheckoutBranch(arguments []string) string {
	for index := 0; index < len(arguments); index++ {
		argument := strings.TrimSpace(arguments[index])
		if (argument == "-b" || argument == "-B") && index+1 < len(arguments) {
			return arguments[index+1]
		}
	}
	return formatter.argumentAtIndex(nonFlagArguments(arguments), 0)
}

// stripRepositoryScope drops leading --git-dir/--work-tree pairs so the subcommand comes first.
func stripRepositoryScope(arguments []string) []string {
	remaining := arguments
	for len(remaining) >= 2 {
		flag := strings.TrimSpace(remaining[0])
		if flag != gitDirectoryFlagConstant && flag != gitWorkTreeFlagConstant {
			break
		}
		remaining = remaining[2:]
	}
	return remaining
}

func nonFlagArguments(arguments []string) []string {
	filtered := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) == 0 || strings.HasPrefix(trimmed, "-") {
			continue
		}
		filtered = append(filtered, trimmed)
	}
	return filtered
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments); index++ {
		if strings.TrimSpace(arguments[index]) == flag && index+1 < len(arguments) {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}
