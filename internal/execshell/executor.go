package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "logger not configured"
	commandRunnerNotConfiguredMessageConstant = "command runner not configured"
	commandFailedTemplateConstant             = "%s exited with code %d"
	commandFailedWithOutputTemplateConstant   = "%s exited with code %d: %s"
	commandExecutionFailedTemplateConstant    = "%s could not be executed: %v"
	dryRunMessagePrefixConstant               = "Would run "
	logFieldCommandNameConstant               = "command"
	logFieldArgumentsConstant                 = "arguments"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldStandardErrorConstant             = "stderr"
	logFieldDryRunConstant                    = "dry_run"
	structuredStartMessageConstant            = "command started"
	structuredSuccessMessageConstant          = "command completed"
	structuredFailureMessageConstant          = "command failed"
	structuredExecutionFailureMessageConstant = "command execution failed"
	structuredDryRunMessageConstant           = "command skipped (dry run)"
)

// CommandName identifies an external executable.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName("git")
)

// FailureMode selects how a non-zero exit status is reported to the caller.
type FailureMode int

const (
	// FailureModeAbort returns a CommandFailedError.
	FailureModeAbort FailureMode = iota
	// FailureModeTolerate returns a result flagged as Tolerated and no error.
	FailureModeTolerate
	// FailureModeCallback delegates the decision to ExecutionPolicy.FailureHandler.
	FailureModeCallback
)

// FailureHandler converts a failed command into the error returned to the caller.
// Returning nil tolerates the failure.
type FailureHandler func(command ShellCommand, failure error) error

// ExecutionPolicy configures a single command invocation.
type ExecutionPolicy struct {
	FailureMode    FailureMode
	FailureHandler FailureHandler
	// Silent keeps the subprocess diagnostic stream out of the terminal and demotes failure logs to debug.
	Silent bool
	// DryRun returns the would-be command line without spawning a process.
	DryRun bool
}

// CommandDetails describes arguments and environment for a command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	Policy               ExecutionPolicy
}

// ShellCommand couples an executable with its details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// CommandLine renders the command as a single space separated string.
func (command ShellCommand) CommandLine() string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(parts, " ")
}

// ExecutionResult captures the observable output of a command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
	// Tolerated reports a non-zero exit that the policy chose not to escalate.
	Tolerated bool
	// DryRun reports that the command was not executed.
	DryRun bool
}

// CommandRunner spawns one process per call.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a command that exited with a non-zero status.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failure.
func (failure CommandFailedError) Error() string {
	trimmedStandardError := strings.TrimSpace(failure.Result.StandardError)
	if len(trimmedStandardError) == 0 {
		return fmt.Sprintf(commandFailedTemplateConstant, failure.Command.CommandLine(), failure.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedWithOutputTemplateConstant, failure.Command.CommandLine(), failure.Result.ExitCode, trimmedStandardError)
}

// CommandExecutionError reports a command that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionFailedTemplateConstant, failure.Command.CommandLine(), failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

var (
	// ErrLoggerNotConfigured indicates a nil logger was supplied.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates a nil runner was supplied.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
)

// ShellExecutor runs external commands through a CommandRunner and logs their lifecycle.
type ShellExecutor struct {
	logger               *zap.Logger
	runner               CommandRunner
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	observer             CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		logger:               logger,
		runner:               runner,
		humanReadableLogging: humanReadableLogging,
		observer:             noopCommandEventObserver{},
	}, nil
}

// SetObserver registers an observer for command lifecycle events. A nil observer restores the no-op observer.
func (executor *ShellExecutor) SetObserver(observer CommandEventObserver) {
	if observer == nil {
		executor.observer = noopCommandEventObserver{}
		return
	}
	executor.observer = observer
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the command according to its policy.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	policy := command.Details.Policy

	if policy.DryRun {
		executor.logDryRun(command)
		executor.observer.CommandSkipped(command)
		return ExecutionResult{StandardOutput: command.CommandLine(), DryRun: true}, nil
	}

	executor.logStart(command)
	executor.observer.CommandStarted(command)

	result, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logExecutionFailure(command, runError)
		executor.observer.CommandExecutionFailed(command, runError)
		executionFailure := CommandExecutionError{Command: command, Cause: runError}
		return executor.applyFailurePolicy(command, ExecutionResult{}, executionFailure)
	}

	result.StandardOutput = strings.TrimRightFunc(result.StandardOutput, unicode.IsSpace)
	executor.observer.CommandCompleted(command, result)

	if result.ExitCode != 0 {
		executor.logFailure(command, result)
		return executor.applyFailurePolicy(command, result, CommandFailedError{Command: command, Result: result})
	}

	executor.logSuccess(command, result)
	return result, nil
}

func (executor *ShellExecutor) applyFailurePolicy(command ShellCommand, result ExecutionResult, failure error) (ExecutionResult, error) {
	switch command.Details.Policy.FailureMode {
	case FailureModeTolerate:
		return ExecutionResult{ExitCode: result.ExitCode, StandardError: result.StandardError, Tolerated: true}, nil
	case FailureModeCallback:
		if command.Details.Policy.FailureHandler == nil {
			return ExecutionResult{}, failure
		}
		if handledError := command.Details.Policy.FailureHandler(command, failure); handledError != nil {
			return ExecutionResult{}, handledError
		}
		return ExecutionResult{ExitCode: result.ExitCode, StandardError: result.StandardError, Tolerated: true}, nil
	default:
		return ExecutionResult{}, failure
	}
}

func (executor *ShellExecutor) logStart(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(executor.messageFormatter.BuildStartedMessage(command))
		return
	}
	executor.logger.Debug(structuredStartMessageConstant, executor.commandFields(command)...)
}

func (executor *ShellExecutor) logSuccess(command ShellCommand, result ExecutionResult) {
	if executor.humanReadableLogging {
		executor.logger.Debug(executor.messageFormatter.BuildSuccessMessage(command))
		return
	}
	fields := append(executor.commandFields(command), zap.Int(logFieldExitCodeConstant, result.ExitCode))
	executor.logger.Debug(structuredSuccessMessageConstant, fields...)
}

func (executor *ShellExecutor) logFailure(command ShellCommand, result ExecutionResult) {
	level := executor.failureLevelLogger(command)
	if executor.humanReadableLogging {
		level(executor.messageFormatter.BuildFailureMessage(command, result))
		return
	}
	fields := append(executor.commandFields(command),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.String(logFieldStandardErrorConstant, strings.TrimSpace(result.StandardError)),
	)
	level(structuredFailureMessageConstant, fields...)
}

func (executor *ShellExecutor) logExecutionFailure(command ShellCommand, failure error) {
	level := executor.failureLevelLogger(command)
	if executor.humanReadableLogging {
		level(executor.messageFormatter.BuildExecutionFailureMessage(command, failure))
		return
	}
	fields := append(executor.commandFields(command), zap.Error(failure))
	level(structuredExecutionFailureMessageConstant, fields...)
}

func (executor *ShellExecutor) logDryRun(command ShellCommand) {
	if executor.humanReadableLogging {
		executor.logger.Info(dryRunMessagePrefixConstant + command.CommandLine())
		return
	}
	fields := append(executor.commandFields(command), zap.Bool(logFieldDryRunConstant, true))
	executor.logger.Info(structuredDryRunMessageConstant, fields...)
}

func (executor *ShellExecutor) failureLevelLogger(command ShellCommand) func(string, ...zap.Field) {
	if command.Details.Policy.Silent || command.Details.Policy.FailureMode == FailureModeTolerate {
		return executor.logger.Debug
	}
	return executor.logger.Warn
}

func (executor *ShellExecutor) commandFields(command ShellCommand) []zap.Field {
	return []zap.Field{
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}
}
