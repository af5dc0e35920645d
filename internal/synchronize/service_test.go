package synchronize_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/mono2repo/internal/filterrepo"
	"github.com/temirov/mono2repo/internal/gitrepo"
	"github.com/temirov/mono2repo/internal/locator"
	"github.com/temirov/mono2repo/internal/synchronize"
	"github.com/temirov/mono2repo/internal/synchronize/testsupport"
)

const (
	remoteSourceConstant          = "https://example.org/group/repo.git/tools/widget"
	remoteRootConstant            = "https://example.org/group/repo.git"
	destinationPathConstant       = "/dst/widget"
	destinationMetadataConstant   = "/dst/widget/.git"
	workspacePathConstant         = "/work"
	legacyClonePathConstant       = "/work/legacy-repo"
	earliestDateConstant          = "2021-03-01T09:00:00+00:00"
	migrateHeadConstant           = "0123456789abcdef"
	gitVersionCommandConstant     = "--version"
	pluginVersionCommandConstant  = "filter-repo --version"
	remoteCloneCommandConstant    = "clone https://example.org/group/repo.git /work/legacy-repo"
	currentBranchCommandConstant  = "symbolic-ref --short HEAD"
	filterCommandConstant         = "filter-repo --path tools/widget/ --path-rename tools/widget/:"
	headProbeCommandConstant      = "rev-parse --verify --quiet HEAD"
	historyLogCommandConstant     = "log --reverse --format=%h|%cI|%s"
	destinationInitCommand        = "init /dst/widget"
	mainlineCheckoutCommand       = "checkout -b master"
	initialCommitCommandConstant  = "commit --allow-empty -m Initial commit --date 2021-03-01T09:00:00+00:00"
	remoteAddCommandConstant      = "remote add legacy /work/legacy-repo"
	fetchCommandConstant          = "fetch legacy main"
	createCheckoutCommandConstant = "checkout -b migrate --track legacy/main"
	updateCheckoutCommandConstant = "checkout -B migrate --track legacy/main"
	rebaseCommandConstant         = "rebase --committer-date-is-author-date master"
	remoteRemoveCommandConstant   = "remote remove legacy"
	migrateHeadCommandConstant    = "rev-parse --verify --quiet refs/heads/migrate"
	mainlineProbeCommandConstant  = "rev-parse --verify --quiet refs/heads/master"
	statusCommandConstant         = "status --short --branch"
)

func scriptedResponses() map[string]string {
	return map[string]string{
		gitVersionCommandConstant:    "git version 2.43.0",
		pluginVersionCommandConstant: "a40bce548d2c",
		currentBranchCommandConstant: "main",
		headProbeCommandConstant:     migrateHeadConstant,
		historyLogCommandConstant:    "a1b2|" + earliestDateConstant + "|first\nc3d4|2022-01-01T00:00:00+00:00|second",
		migrateHeadCommandConstant:   migrateHeadConstant,
	}
}

func standardOptions() synchronize.Options {
	return synchronize.Options{
		Source:          remoteSourceConstant,
		Destination:     destinationPathConstant,
		WorkspacePath:   workspacePathConstant,
		LockDestination: true,
	}
}

func newTestService(testInstance *testing.T, executor *testsupport.ScriptedGitExecutor, fileSystem afero.Fs, lockStub *testsupport.LockStub) *synchronize.Service {
	testInstance.Helper()
	service, serviceError := synchronize.NewService(synchronize.ServiceDependencies{
		Logger:          zap.NewNop(),
		GitExecutor:     executor,
		FileSystem:      fileSystem,
		LocatorResolver: locator.NewResolverWithFileSystem(fileSystem, func() (string, error) { return "/", nil }),
		Locker:          lockStub.Acquire,
	})
	require.NoError(testInstance, serviceError)
	return service
}

func initializedDestinationFileSystem(testInstance *testing.T) afero.Fs {
	testInstance.Helper()
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll(destinationMetadataConstant, 0o755))
	return fileSystem
}

func TestNewServiceRequiresExecutor(testInstance *testing.T) {
	_, serviceError := synchronize.NewService(synchronize.ServiceDependencies{})
	require.Error(testInstance, serviceError)
}

func TestServiceCreateRunsBackboneInOrder(testInstance *testing.T) {
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	lockStub := &testsupport.LockStub{}
	service := newTestService(testInstance, executor, afero.NewMemMapFs(), lockStub)

	result, executionError := service.Execute(context.Background(), synchronize.ProtocolCreate(), standardOptions())
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, []string{
		gitVersionCommandConstant,
		pluginVersionCommandConstant,
		remoteCloneCommandConstant,
		currentBranchCommandConstant,
		filterCommandConstant,
		headProbeCommandConstant,
		historyLogCommandConstant,
		destinationInitCommand,
		mainlineCheckoutCommand,
		initialCommitCommandConstant,
		remoteAddCommandConstant,
		fetchCommandConstant,
		createCheckoutCommandConstant,
		rebaseCommandConstant,
		remoteRemoveCommandConstant,
		migrateHeadCommandConstant,
		statusCommandConstant,
	}, executor.CommandLines())

	commitDetails, commitFound := executor.Find(initialCommitCommandConstant)
	require.True(testInstance, commitFound)
	require.Equal(testInstance, map[string]string{"GIT_COMMITTER_DATE": earliestDateConstant}, commitDetails.EnvironmentVariables)
	require.Equal(testInstance, destinationPathConstant, commitDetails.WorkingDirectory)

	fetchDetails, fetchFound := executor.Find(fetchCommandConstant)
	require.True(testInstance, fetchFound)
	require.Equal(testInstance, destinationPathConstant, fetchDetails.WorkingDirectory)

	filterDetails, filterFound := executor.Find(filterCommandConstant)
	require.True(testInstance, filterFound)
	require.Equal(testInstance, legacyClonePathConstant, filterDetails.WorkingDirectory)

	require.Equal(testInstance, synchronize.Result{
		Protocol:          synchronize.ProtocolNameCreate,
		Locator:           locator.Locator{Root: remoteRootConstant, Subdirectory: "tools/widget", Remote: true},
		Destination:       destinationPathConstant,
		SourceBranch:      "main",
		InitialCommitDate: earliestDateConstant,
		MigrateHead:       migrateHeadConstant,
	}, result)
	require.Equal(testInstance, []string{destinationPathConstant}, lockStub.Destinations)
	require.Equal(testInstance, 1, lockStub.ReleaseCount)
}

func TestServiceUpdateRecreatesMigrateBranch(testInstance *testing.T) {
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	service := newTestService(testInstance, executor, initializedDestinationFileSystem(testInstance), &testsupport.LockStub{})

	result, executionError := service.Execute(context.Background(), synchronize.ProtocolUpdate(), standardOptions())
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, []string{
		gitVersionCommandConstant,
		pluginVersionCommandConstant,
		mainlineProbeCommandConstant,
		remoteCloneCommandConstant,
		currentBranchCommandConstant,
		filterCommandConstant,
		headProbeCommandConstant,
		remoteAddCommandConstant,
		fetchCommandConstant,
		updateCheckoutCommandConstant,
		rebaseCommandConstant,
		remoteRemoveCommandConstant,
		migrateHeadCommandConstant,
		statusCommandConstant,
	}, executor.CommandLines())
	require.Equal(testInstance, synchronize.ProtocolNameUpdate, result.Protocol)
	require.Empty(testInstance, result.InitialCommitDate)
	require.Equal(testInstance, migrateHeadConstant, result.MigrateHead)
}

func TestServiceFailureScenarios(testInstance *testing.T) {
	rebaseFailure := errors.New("rebase conflict")
	removalFailure := errors.New("remote removal failed")

	testCases := []struct {
		name                  string
		protocol              synchronize.Protocol
		options               synchronize.Options
		initializeDestination bool
		responses             map[string]string
		failures              map[string]error
		expectedErrors        []error
		expectedCommands      []string
		unexpectedCommands    []string
		expectedReleaseCount  int
	}{
		{
			name:               "missing_repository_marker",
			protocol:           synchronize.ProtocolCreate(),
			options:            synchronize.Options{Source: "https://example.org/group/repo/tools", Destination: destinationPathConstant},
			expectedErrors:     []error{locator.ErrMissingRepositoryMarker},
			unexpectedCommands: []string{gitVersionCommandConstant},
		},
		{
			name:               "unsupported_git_version",
			protocol:           synchronize.ProtocolCreate(),
			options:            standardOptions(),
			responses:          map[string]string{gitVersionCommandConstant: "git version 2.20.1"},
			expectedErrors:     []error{gitrepo.ErrUnsupportedGitVersion},
			unexpectedCommands: []string{pluginVersionCommandConstant, remoteCloneCommandConstant},
		},
		{
			name:               "missing_filter_plugin",
			protocol:           synchronize.ProtocolCreate(),
			options:            standardOptions(),
			failures:           map[string]error{pluginVersionCommandConstant: errors.New("not a git command")},
			expectedErrors:     []error{filterrepo.ErrPluginNotInstalled},
			unexpectedCommands: []string{remoteCloneCommandConstant},
		},
		{
			name:                  "create_refuses_existing_history",
			protocol:              synchronize.ProtocolCreate(),
			options:               standardOptions(),
			initializeDestination: true,
			expectedErrors:        []error{synchronize.ErrDestinationHasHistory},
			expectedCommands:      []string{mainlineProbeCommandConstant},
			unexpectedCommands:    []string{remoteCloneCommandConstant},
			expectedReleaseCount:  1,
		},
		{
			name:                 "update_refuses_uninitialized_destination",
			protocol:             synchronize.ProtocolUpdate(),
			options:              standardOptions(),
			expectedErrors:       []error{synchronize.ErrDestinationNotInitialized},
			unexpectedCommands:   []string{remoteCloneCommandConstant},
			expectedReleaseCount: 1,
		},
		{
			name:                 "empty_filtered_history",
			protocol:             synchronize.ProtocolCreate(),
			options:              standardOptions(),
			failures:             map[string]error{headProbeCommandConstant: errors.New("unknown revision")},
			expectedErrors:       []error{synchronize.ErrEmptyHistory},
			expectedCommands:     []string{filterCommandConstant},
			unexpectedCommands:   []string{destinationInitCommand, remoteAddCommandConstant},
			expectedReleaseCount: 1,
		},
		{
			name:                 "rebase_failure_still_removes_remote",
			protocol:             synchronize.ProtocolCreate(),
			options:              standardOptions(),
			failures:             map[string]error{rebaseCommandConstant: rebaseFailure},
			expectedErrors:       []error{synchronize.ErrRebaseFailed, rebaseFailure},
			expectedCommands:     []string{remoteRemoveCommandConstant},
			unexpectedCommands:   []string{migrateHeadCommandConstant},
			expectedReleaseCount: 1,
		},
		{
			name:                  "removal_failure_joins_rebase_failure",
			protocol:              synchronize.ProtocolUpdate(),
			options:               standardOptions(),
			initializeDestination: true,
			failures: map[string]error{
				rebaseCommandConstant:       rebaseFailure,
				remoteRemoveCommandConstant: removalFailure,
			},
			expectedErrors:       []error{synchronize.ErrRebaseFailed, removalFailure},
			expectedCommands:     []string{remoteRemoveCommandConstant},
			expectedReleaseCount: 1,
		},
		{
			name:                 "fetch_failure_still_removes_remote",
			protocol:             synchronize.ProtocolCreate(),
			options:              standardOptions(),
			failures:             map[string]error{fetchCommandConstant: errors.New("couldn't find remote ref")},
			expectedCommands:     []string{remoteRemoveCommandConstant},
			unexpectedCommands:   []string{createCheckoutCommandConstant, rebaseCommandConstant},
			expectedReleaseCount: 1,
		},
		{
			name:     "migrate_and_mainline_must_differ",
			protocol: synchronize.ProtocolCreate(),
			options: synchronize.Options{
				Source:         remoteSourceConstant,
				Destination:    destinationPathConstant,
				MigrateBranch:  "master",
				MainlineBranch: "master",
			},
			unexpectedCommands: []string{gitVersionCommandConstant},
		},
	}

	for testCaseIndex := range testCases {
		testCase := testCases[testCaseIndex]
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			responses := scriptedResponses()
			for key, value := range testCase.responses {
				responses[key] = value
			}
			executor := &testsupport.ScriptedGitExecutor{Responses: responses, Failures: testCase.failures}
			fileSystem := afero.NewMemMapFs()
			if testCase.initializeDestination {
				fileSystem = initializedDestinationFileSystem(subTest)
			}
			lockStub := &testsupport.LockStub{}
			service := newTestService(subTest, executor, fileSystem, lockStub)

			_, executionError := service.Execute(context.Background(), testCase.protocol, testCase.options)
			require.Error(subTest, executionError)
			for _, expectedError := range testCase.expectedErrors {
				require.ErrorIs(subTest, executionError, expectedError)
			}

			executedCommands := executor.CommandLines()
			for _, expectedCommand := range testCase.expectedCommands {
				require.Contains(subTest, executedCommands, expectedCommand)
			}
			for _, unexpectedCommand := range testCase.unexpectedCommands {
				require.NotContains(subTest, executedCommands, unexpectedCommand)
			}
			require.Equal(subTest, testCase.expectedReleaseCount, lockStub.ReleaseCount)
		})
	}
}

func TestServiceDryRunPlansWithoutLocking(testInstance *testing.T) {
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	lockStub := &testsupport.LockStub{}
	service := newTestService(testInstance, executor, afero.NewMemMapFs(), lockStub)

	options := standardOptions()
	options.DryRun = true
	result, executionError := service.Execute(context.Background(), synchronize.ProtocolCreate(), options)
	require.NoError(testInstance, executionError)

	require.Empty(testInstance, lockStub.Destinations)
	require.True(testInstance, result.DryRun)
	require.Equal(testInstance, "master", result.SourceBranch)
	require.Equal(testInstance, synchronize.EarliestCommitDatePlaceholder, result.InitialCommitDate)
	require.Empty(testInstance, result.MigrateHead)

	executedCommands := executor.CommandLines()
	require.NotContains(testInstance, executedCommands, currentBranchCommandConstant)
	require.NotContains(testInstance, executedCommands, historyLogCommandConstant)
	require.Contains(testInstance, executedCommands, "commit --allow-empty -m Initial commit --date "+synchronize.EarliestCommitDatePlaceholder)
	require.Contains(testInstance, executedCommands, "checkout -b migrate --track legacy/master")
	require.NotContains(testInstance, executedCommands, statusCommandConstant)

	for _, details := range executor.Commands {
		commandLine := details.Arguments
		switch {
		case len(commandLine) == 1 && commandLine[0] == gitVersionCommandConstant,
			len(commandLine) == 2 && commandLine[0] == "filter-repo" && commandLine[1] == "--version":
			require.False(testInstance, details.Policy.DryRun)
		default:
			require.True(testInstance, details.Policy.DryRun, commandLine)
		}
	}
}

func TestServiceHonorsConfiguredRefs(testInstance *testing.T) {
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	service := newTestService(testInstance, executor, afero.NewMemMapFs(), &testsupport.LockStub{})

	options := standardOptions()
	options.SourceBranch = "develop"
	options.MainlineBranch = "trunk"
	options.MigrateBranch = "import"
	options.RemoteName = "mono"
	options.LockDestination = false

	result, executionError := service.Execute(context.Background(), synchronize.ProtocolCreate(), options)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "develop", result.SourceBranch)

	executedCommands := executor.CommandLines()
	require.Contains(testInstance, executedCommands, "clone --branch develop https://example.org/group/repo.git /work/legacy-repo")
	require.NotContains(testInstance, executedCommands, currentBranchCommandConstant)
	require.Contains(testInstance, executedCommands, "checkout -b trunk")
	require.Contains(testInstance, executedCommands, "remote add mono /work/legacy-repo")
	require.Contains(testInstance, executedCommands, "fetch mono develop")
	require.Contains(testInstance, executedCommands, "checkout -b import --track mono/develop")
	require.Contains(testInstance, executedCommands, "rebase --committer-date-is-author-date trunk")
	require.Contains(testInstance, executedCommands, "remote remove mono")
}

func TestServiceClonesLocalRootWithoutFilter(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, fileSystem.MkdirAll("/src/mono/.git", 0o755))
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	service := newTestService(testInstance, executor, fileSystem, &testsupport.LockStub{})

	options := standardOptions()
	options.Source = "/src/mono"
	result, executionError := service.Execute(context.Background(), synchronize.ProtocolCreate(), options)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, locator.Locator{Root: "/src/mono"}, result.Locator)

	executedCommands := executor.CommandLines()
	require.Contains(testInstance, executedCommands, "clone --no-local /src/mono /work/legacy-repo")
	for _, commandLine := range executedCommands {
		require.NotContains(testInstance, commandLine, "--path-rename")
	}
}

func TestServiceReportsLockContention(testInstance *testing.T) {
	lockStub := &testsupport.LockStub{AcquireError: errors.New("destination is locked")}
	executor := &testsupport.ScriptedGitExecutor{Responses: scriptedResponses()}
	service := newTestService(testInstance, executor, afero.NewMemMapFs(), lockStub)

	_, executionError := service.Execute(context.Background(), synchronize.ProtocolCreate(), standardOptions())
	require.ErrorIs(testInstance, executionError, lockStub.AcquireError)
	require.NotContains(testInstance, executor.CommandLines(), remoteCloneCommandConstant)
}

func TestServiceRejectsMissingProtocolAndDestination(testInstance *testing.T) {
	service := newTestService(testInstance, &testsupport.ScriptedGitExecutor{}, afero.NewMemMapFs(), &testsupport.LockStub{})

	_, protocolError := service.Execute(context.Background(), nil, standardOptions())
	var inputError synchronize.InvalidInputError
	require.ErrorAs(testInstance, protocolError, &inputError)
	require.Equal(testInstance, "protocol", inputError.FieldName)

	_, destinationError := service.Execute(context.Background(), synchronize.ProtocolCreate(), synchronize.Options{Source: remoteSourceConstant})
	require.ErrorAs(testInstance, destinationError, &inputError)
	require.Equal(testInstance, "destination", inputError.FieldName)
}

func TestServiceDetachesRemoteAfterCancellation(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	defer cancel()

	executor := &testsupport.ScriptedGitExecutor{
		Responses: scriptedResponses(),
		CancelOn:  rebaseCommandConstant,
		Cancel:    cancel,
	}
	lockStub := &testsupport.LockStub{}
	service := newTestService(testInstance, executor, afero.NewMemMapFs(), lockStub)

	_, executionError := service.Execute(executionContext, synchronize.ProtocolCreate(), standardOptions())
	require.ErrorIs(testInstance, executionError, synchronize.ErrRebaseFailed)
	require.ErrorIs(testInstance, executionError, context.Canceled)
	require.NotContains(testInstance, executionError.Error(), "unable to remove remote")

	commandLines := executor.CommandLines()
	require.Equal(testInstance, remoteRemoveCommandConstant, commandLines[len(commandLines)-1])
	require.NoError(testInstance, executor.ContextErrors[len(executor.ContextErrors)-1])
	require.Equal(testInstance, 1, lockStub.ReleaseCount)
}
