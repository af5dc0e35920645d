// Package testsupport provides synchronization test doubles.
package testsupport

import (
	"context"
	"strings"
	"sync"

	"github.com/temirov/mono2repo/internal/execshell"
	"github.com/temirov/mono2repo/internal/synchronize"
)

// ScriptedGitExecutor records git invocations and answers them from scripted responses keyed by the
// space-joined arguments. Unscripted commands succeed with empty output.
type ScriptedGitExecutor struct {
	mutex         sync.Mutex
	Responses     map[string]string
	Failures      map[string]error
	Commands      []execshell.CommandDetails
	// CancelOn names a command line that invokes Cancel when it is issued and then fails as interrupted.
	CancelOn      string
	Cancel        context.CancelFunc
	// ContextErrors holds the context error observed by each recorded invocation.
	ContextErrors []error
}

// ExecuteGit implements gitrepo.GitExecutor and honors the dry-run and tolerate policies like the
// shell executor does. A cancelled context fails the command before anything else is consulted.
func (executor *ScriptedGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	if executionContext == nil {
		executionContext = context.Background()
	}
	contextError := executionContext.Err()
	executor.Commands = append(executor.Commands, details)
	executor.ContextErrors = append(executor.ContextErrors, contextError)
	key := strings.Join(details.Arguments, " ")

	if contextError != nil {
		return execshell.ExecutionResult{}, contextError
	}
	if len(executor.CancelOn) > 0 && key == executor.CancelOn && executor.Cancel != nil {
		executor.Cancel()
		return execshell.ExecutionResult{}, executionContext.Err()
	}

	if details.Policy.DryRun {
		return execshell.ExecutionResult{StandardOutput: "git " + key, DryRun: true}, nil
	}
	if failure, exists := executor.Failures[key]; exists {
		if details.Policy.FailureMode == execshell.FailureModeTolerate {
			return execshell.ExecutionResult{ExitCode: 1, Tolerated: true}, nil
		}
		return execshell.ExecutionResult{ExitCode: 1}, failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.Responses[key]}, nil
}

// CommandLines returns the recorded invocations as space-joined argument strings.
func (executor *ScriptedGitExecutor) CommandLines() []string {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	lines := make([]string, 0, len(executor.Commands))
	for _, details := range executor.Commands {
		lines = append(lines, strings.Join(details.Arguments, " "))
	}
	return lines
}

// Find returns the first recorded invocation whose joined arguments equal commandLine.
func (executor *ScriptedGitExecutor) Find(commandLine string) (execshell.CommandDetails, bool) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()

	for _, details := range executor.Commands {
		if strings.Join(details.Arguments, " ") == commandLine {
			return details, true
		}
	}
	return execshell.CommandDetails{}, false
}

// LockStub counts lock acquisitions and releases.
type LockStub struct {
	AcquireError error
	Destinations []string
	ReleaseCount int
	ReleaseError error
}

// Acquire records destination and returns the stub itself as the held lock. It satisfies
// synchronize.DestinationLocker.
func (stub *LockStub) Acquire(destination string) (synchronize.DestinationLock, error) {
	stub.Destinations = append(stub.Destinations, destination)
	if stub.AcquireError != nil {
		return nil, stub.AcquireError
	}
	return stub, nil
}

// Release records the release.
func (stub *LockStub) Release() error {
	stub.ReleaseCount++
	return stub.ReleaseError
}

// SynchronizerStub records the requests it receives and returns a configured outcome.
type SynchronizerStub struct {
	Result               synchronize.Result
	Error                error
	ReceivedProtocol     synchronize.ProtocolName
	ReceivedOptions      synchronize.Options
	ReceivedDependencies synchronize.ServiceDependencies
	CallCount            int
}

// Provider returns a ServiceProvider handing out the stub.
func (stub *SynchronizerStub) Provider() synchronize.ServiceProvider {
	return func(dependencies synchronize.ServiceDependencies) (synchronize.Synchronizer, error) {
		stub.ReceivedDependencies = dependencies
		return stub, nil
	}
}

// Execute records the protocol and options.
func (stub *SynchronizerStub) Execute(_ context.Context, protocol synchronize.Protocol, options synchronize.Options) (synchronize.Result, error) {
	stub.CallCount++
	stub.ReceivedProtocol = protocol.Name()
	stub.ReceivedOptions = options
	return stub.Result, stub.Error
}
