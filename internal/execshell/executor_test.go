package execshell_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/mono2repo/internal/execshell"
)

const (
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionRunnerErrorCaseNameConstant     = "runner_error"
	testCommandArgumentConstant                  = "--version"
	testWorkingDirectoryConstant                 = "."
	testStandardErrorOutputConstant              = "failure"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testRunnerInitializationCaseNameConstant     = "runner_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
)

type recordingCommandRunner struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	return runner.executionResult, runner.executionError
}

type recordingEventObserver struct {
	started   []execshell.ShellCommand
	completed []execshell.ShellCommand
	failed    []execshell.ShellCommand
	skipped   []execshell.ShellCommand
}

func (observer *recordingEventObserver) CommandStarted(command execshell.ShellCommand) {
	observer.started = append(observer.started, command)
}

func (observer *recordingEventObserver) CommandCompleted(command execshell.ShellCommand, _ execshell.ExecutionResult) {
	observer.completed = append(observer.completed, command)
}

func (observer *recordingEventObserver) CommandExecutionFailed(command execshell.ShellCommand, _ error) {
	observer.failed = append(observer.failed, command)
}

func (observer *recordingEventObserver) CommandSkipped(command execshell.ShellCommand) {
	observer.skipped = append(observer.skipped, command)
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		runner        execshell.CommandRunner
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			runner:      &recordingCommandRunner{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testRunnerInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			runner:      nil,
			expectError: execshell.ErrCommandRunnerNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			runner:        &recordingCommandRunner{},
			expectSuccess: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.runner, false)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorExecuteBehavior(testInstance *testing.T) {
	testCases := []struct {
		name             string
		runnerResult     execshell.ExecutionResult
		runnerError      error
		expectErrorType  any
		expectedLogCount int
	}{
		{
			name: testExecutionSuccessCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardOutput: "ok",
				ExitCode:       0,
			},
			expectedLogCount: 2,
		},
		{
			name: testExecutionFailureCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardError: testStandardErrorOutputConstant,
				ExitCode:      1,
			},
			expectErrorType:  execshell.CommandFailedError{},
			expectedLogCount: 2,
		},
		{
			name:             testExecutionRunnerErrorCaseNameConstant,
			runnerError:      errors.New("runner failure"),
			expectErrorType:  execshell.CommandExecutionError{},
			expectedLogCount: 2,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionResult: testCase.runnerResult,
				executionError:  testCase.runnerError,
			}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, false)
			require.NoError(testInstance, creationError)

			commandDetails := execshell.CommandDetails{Arguments: []string{testCommandArgumentConstant}, WorkingDirectory: testWorkingDirectoryConstant}
			executionResult, executionError := shellExecutor.ExecuteGit(context.Background(), commandDetails)

			if testCase.expectErrorType != nil {
				require.Error(testInstance, executionError)
				require.IsType(testInstance, testCase.expectErrorType, executionError)
				require.Empty(testInstance, executionResult.StandardOutput)
			} else {
				require.NoError(testInstance, executionError)
				require.Equal(testInstance, testCase.runnerResult.StandardOutput, executionResult.StandardOutput)
			}

			require.Len(testInstance, observerLogs.All(), testCase.expectedLogCount)
			require.Len(testInstance, recordingRunner.recordedCommands, 1)
			require.Equal(testInstance, execshell.CommandGit, recordingRunner.recordedCommands[0].Name)
		})
	}
}

func TestShellExecutorFailurePolicies(testInstance *testing.T) {
	handlerError := errors.New("translated failure")

	testCases := []struct {
		name              string
		policy            execshell.ExecutionPolicy
		expectedError     error
		expectTolerated   bool
		expectedWarnCount int
	}{
		{
			name:              "abort",
			policy:            execshell.ExecutionPolicy{FailureMode: execshell.FailureModeAbort},
			expectedWarnCount: 1,
		},
		{
			name:            "tolerate",
			policy:          execshell.ExecutionPolicy{FailureMode: execshell.FailureModeTolerate},
			expectTolerated: true,
		},
		{
			name: "callback_translates",
			policy: execshell.ExecutionPolicy{
				FailureMode: execshell.FailureModeCallback,
				FailureHandler: func(execshell.ShellCommand, error) error {
					return handlerError
				},
			},
			expectedError:     handlerError,
			expectedWarnCount: 1,
		},
		{
			name: "callback_tolerates",
			policy: execshell.ExecutionPolicy{
				FailureMode: execshell.FailureModeCallback,
				FailureHandler: func(execshell.ShellCommand, error) error {
					return nil
				},
			},
			expectTolerated:   true,
			expectedWarnCount: 1,
		},
		{
			name:   "silent_abort",
			policy: execshell.ExecutionPolicy{FailureMode: execshell.FailureModeAbort, Silent: true},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			recordingRunner := &recordingCommandRunner{
				executionResult: execshell.ExecutionResult{ExitCode: 128, StandardError: "fatal: bad revision"},
			}
			shellExecutor, creationError := execshell.NewShellExecutor(zap.New(observerCore), recordingRunner, true)
			require.NoError(testInstance, creationError)

			executionResult, executionError := shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{
				Arguments: []string{"rev-parse", "--verify", "missing"},
				Policy:    testCase.policy,
			})

			switch {
			case testCase.expectTolerated:
				require.NoError(testInstance, executionError)
				require.True(testInstance, executionResult.Tolerated)
				require.Equal(testInstance, 128, executionResult.ExitCode)
			case testCase.expectedError != nil:
				require.ErrorIs(testInstance, executionError, testCase.expectedError)
			default:
				var commandFailure execshell.CommandFailedError
				require.ErrorAs(testInstance, executionError, &commandFailure)
				require.Equal(testInstance, 128, commandFailure.Result.ExitCode)
				require.Contains(testInstance, commandFailure.Error(), "fatal: bad revision")
			}

			require.Equal(testInstance, testCase.expectedWarnCount, observerLogs.FilterLevelExact(zapcore.WarnLevel).Len())
		})
	}
}

func TestShellExecutorDryRunSkipsRunner(testInstance *testing.T) {
	observerCore, observerLogs := observer.New(zap.DebugLevel)
	recordingRunner := &recordingCommandRunner{}
	shellExecutor, creationError := execshell.NewShellExecutor(zap.New(observerCore), recordingRunner, true)
	require.NoError(testInstance, creationError)

	var planBuffer bytes.Buffer
	shellExecutor.SetObserver(execshell.NewPlanWriter(&planBuffer))

	executionResult, executionError := shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments: []string{"init"},
		Policy:    execshell.ExecutionPolicy{DryRun: true},
	})

	require.NoError(testInstance, executionError)
	require.True(testInstance, executionResult.DryRun)
	require.Equal(testInstance, "git init", executionResult.StandardOutput)
	require.Empty(testInstance, recordingRunner.recordedCommands)
	require.Equal(testInstance, "git init\n", planBuffer.String())
	require.Equal(testInstance, 1, observerLogs.FilterMessage("Would run git init").Len())

	_, scopedError := shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{
		Arguments:        []string{"remote", "remove", "legacy"},
		WorkingDirectory: "/tmp/destination",
		Policy:           execshell.ExecutionPolicy{DryRun: true},
	})
	require.NoError(testInstance, scopedError)
	require.Equal(testInstance, "git init\ngit -C /tmp/destination remote remove legacy\n", planBuffer.String())
}

func TestShellExecutorNotifiesObserver(testInstance *testing.T) {
	recordingRunner := &recordingCommandRunner{executionResult: execshell.ExecutionResult{StandardOutput: "abc123\n"}}
	shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), recordingRunner, false)
	require.NoError(testInstance, creationError)

	eventObserver := &recordingEventObserver{}
	shellExecutor.SetObserver(eventObserver)

	executionResult, executionError := shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{Arguments: []string{"rev-parse", "HEAD"}})
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "abc123", executionResult.StandardOutput)
	require.Len(testInstance, eventObserver.started, 1)
	require.Len(testInstance, eventObserver.completed, 1)
	require.Empty(testInstance, eventObserver.failed)
	require.Empty(testInstance, eventObserver.skipped)

	shellExecutor.SetObserver(nil)
	_, executionError = shellExecutor.ExecuteGit(context.Background(), execshell.CommandDetails{Arguments: []string{"status"}})
	require.NoError(testInstance, executionError)
	require.Len(testInstance, eventObserver.started, 1)
}

func TestShellCommandCommandLine(testInstance *testing.T) {
	command := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"remote", "add", "legacy", "/tmp/legacy-repo"}},
	}
	require.Equal(testInstance, "git remote add legacy /tmp/legacy-repo", command.CommandLine())
}
