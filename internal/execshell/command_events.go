package execshell

import (
	"fmt"
	"io"
	"strings"
)

const (
	plannedCommandTemplateConstant            = "%s\n"
	plannedCommandInDirectoryTemplateConstant = "%s -C %s %s\n"
)

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that command execution finished and supplies the result.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed reports unexpected failures prior to receiving an execution result.
	CommandExecutionFailed(command ShellCommand, failure error)
	// CommandSkipped reports a command that was not executed because of a dry run.
	CommandSkipped(command ShellCommand)
}

// noopCommandEventObserver discards all command events.
type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}

func (noopCommandEventObserver) CommandSkipped(ShellCommand) {}

// PlanWriter prints the command line of every skipped command, producing a dry-run plan.
type PlanWriter struct {
	writer io.Writer
}

// NewPlanWriter constructs a PlanWriter targeting the provided writer.
func NewPlanWriter(writer io.Writer) *PlanWriter {
	return &PlanWriter{writer: writer}
}

// CommandStarted implements CommandEventObserver.
func (*PlanWriter) CommandStarted(ShellCommand) {}

// CommandCompleted implements CommandEventObserver.
func (*PlanWriter) CommandCompleted(ShellCommand, ExecutionResult) {}

// CommandExecutionFailed implements CommandEventObserver.
func (*PlanWriter) CommandExecutionFailed(ShellCommand, error) {}

// CommandSkipped writes the command line, naming the working directory with -C when one is set so the
// plan can be replayed from anywhere.
func (planWriter *PlanWriter) CommandSkipped(command ShellCommand) {
	if planWriter == nil || planWriter.writer == nil {
		return
	}
	if len(command.Details.WorkingDirectory) == 0 {
		fmt.Fprintf(planWriter.writer, plannedCommandTemplateConstant, command.CommandLine())
		return
	}
	fmt.Fprintf(planWriter.writer, plannedCommandInDirectoryTemplateConstant, command.Name, command.Details.WorkingDirectory, strings.Join(command.Details.Arguments, " "))
}
