package synchronize

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/mono2repo/internal/execshell"
	"github.com/temirov/mono2repo/internal/gitrepo"
	"github.com/temirov/mono2repo/internal/locator"
	"github.com/temirov/mono2repo/internal/utils"
	"github.com/temirov/mono2repo/internal/utils/flags"
	pathutils "github.com/temirov/mono2repo/internal/utils/path"
)

const (
	commandUseTemplateConstant              = "%s SOURCE OUTPUT"
	createShortDescriptionConstant          = "Extract a subdirectory's history into a new repository"
	createLongDescriptionConstant           = "create clones SOURCE, filters its history down to the subdirectory SOURCE points at, seeds a new repository in OUTPUT with an empty commit dated at the earliest filtered commit and rebases the filtered history onto it in the migrate branch." + lockNoteConstant
	createExampleConstant                   = "  mono2repo create https://github.com/example/monorepo.git/tools/widget ./widget\n  mono2repo create ~/src/monorepo/tools/widget ./widget"
	updateShortDescriptionConstant          = "Replay the current subdirectory history onto an existing extraction"
	updateLongDescriptionConstant           = "update clones SOURCE again, filters it and recreates the migrate branch of OUTPUT from the filtered history rebased onto the mainline. Running update repeatedly against an unchanged source yields the same migrate branch." + lockNoteConstant
	updateExampleConstant                   = "  mono2repo update https://github.com/example/monorepo.git/tools/widget ./widget"
	lockNoteConstant                        = "\n\nUnless --no-lock is given, the run holds an advisory lock on .<name>.mono2repo.lock, where <name> is the last element of OUTPUT, in the directory that contains OUTPUT. The lock file is left in place afterwards and can be deleted when no run is active."
	commandArgumentCountConstant            = 2
	workspaceFlagNameConstant               = "tmpdir"
	workspaceFlagUsageConstant              = "Persistent workspace for the scratch clone (kept after the run)"
	noLockFlagNameConstant                  = "no-lock"
	noLockFlagUsageConstant                 = "Do not take the advisory destination lock"
	commandExecutionErrorTemplateConstant   = "%s failed: %w"
	destinationResolutionErrorTemplate      = "unable to resolve output path: %w"
	synchronizationCompletedMessageConstant = "Synchronization completed"
	synchronizationPlannedMessageConstant   = "Synchronization planned"
	logFieldProtocolConstant                = "protocol"
	logFieldSourceConstant                  = "source"
	logFieldMigrateBranchConstant           = "migrate_branch"
	logFieldInitialCommitDateConstant       = "initial_commit_date"
	logFieldMigrateHeadConstant             = "migrate_head"
)

// ServiceProvider constructs a synchronizer from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (Synchronizer, error)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

type observableExecutor interface {
	SetObserver(observer execshell.CommandEventObserver)
}

type commandOptions struct {
	debugLoggingEnabled bool
	synchronization     Options
}

var commandPathExpander = pathutils.NewHomeExpander()

// CommandBuilder assembles the create or update Cobra command.
type CommandBuilder struct {
	Protocol                     ProtocolName
	LoggerProvider               LoggerProvider
	Executor                     gitrepo.GitExecutor
	ServiceProvider              ServiceProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
}

// Build constructs the command for the builder's protocol.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	protocol, protocolError := ProtocolFor(string(builder.Protocol))
	if protocolError != nil {
		return nil, protocolError
	}

	command := &cobra.Command{
		Use:           fmt.Sprintf(commandUseTemplateConstant, protocol.Name()),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(commandArgumentCountConstant),
	}
	switch protocol.Name() {
	case ProtocolNameCreate:
		command.Short = createShortDescriptionConstant
		command.Long = createLongDescriptionConstant
		command.Example = createExampleConstant
	case ProtocolNameUpdate:
		command.Short = updateShortDescriptionConstant
		command.Long = updateLongDescriptionConstant
		command.Example = updateExampleConstant
	}

	defaults := DefaultCommandConfiguration()
	refDefinitions := flags.DefaultRefFlagDefinitions()
	refValues := flags.BindRefFlags(command, flags.RefFlagValues{
		MigrateBranch:  defaults.MigrateBranch,
		MainlineBranch: defaults.MainlineBranch,
		RemoteName:     defaults.RemoteName,
		SourceBranch:   defaults.SourceBranch,
	}, refDefinitions)
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagUsageConstant)
	command.Flags().Bool(noLockFlagNameConstant, false, noLockFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		options, optionsError := builder.parseOptions(command, arguments, refValues, refDefinitions)
		if optionsError != nil {
			return optionsError
		}
		return builder.run(command, protocol, options)
	}

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, protocol Protocol, options commandOptions) error {
	logger := builder.resolveLogger(options.debugLoggingEnabled)

	executor, executorError := builder.resolveExecutor(command, logger, options.debugLoggingEnabled)
	if executorError != nil {
		return executorError
	}
	if options.synchronization.DryRun {
		if observable, supportsObserver := executor.(observableExecutor); supportsObserver {
			observable.SetObserver(execshell.NewPlanWriter(command.OutOrStdout()))
		}
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:      logger,
		GitExecutor: executor,
	})
	if serviceError != nil {
		return serviceError
	}

	result, executionError := service.Execute(command.Context(), protocol, options.synchronization)
	if executionError != nil {
		return fmt.Errorf(commandExecutionErrorTemplateConstant, protocol.Name(), executionError)
	}

	builder.logSummary(logger, options.synchronization, result)
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string, refValues *flags.RefFlagValues, refDefinitions flags.RefFlagDefinitions) (commandOptions, error) {
	configuration := builder.resolveConfiguration()

	source := strings.TrimSpace(arguments[0])
	if !locator.IsRemote(source) {
		source = commandPathExpander.Expand(source)
	}
	destination, destinationError := commandPathExpander.ExpandAbsolute(strings.TrimSpace(arguments[1]))
	if destinationError != nil {
		return commandOptions{}, fmt.Errorf(destinationResolutionErrorTemplate, destinationError)
	}

	synchronization := Options{
		Source:          source,
		Destination:     destination,
		WorkspacePath:   configuration.Workspace,
		MainlineBranch:  configuration.MainlineBranch,
		MigrateBranch:   configuration.MigrateBranch,
		RemoteName:      configuration.RemoteName,
		SourceBranch:    configuration.SourceBranch,
		DryRun:          configuration.DryRun,
		LockDestination: configuration.LockDestination,
	}

	changedRefs := flags.ChangedRefValues(command, refValues, refDefinitions)
	if len(changedRefs.MainlineBranch) > 0 {
		synchronization.MainlineBranch = changedRefs.MainlineBranch
	}
	if len(changedRefs.MigrateBranch) > 0 {
		synchronization.MigrateBranch = changedRefs.MigrateBranch
	}
	if len(changedRefs.RemoteName) > 0 {
		synchronization.RemoteName = changedRefs.RemoteName
	}
	if len(changedRefs.SourceBranch) > 0 {
		synchronization.SourceBranch = changedRefs.SourceBranch
	}

	if command.Flags().Changed(workspaceFlagNameConstant) {
		workspacePath, _ := command.Flags().GetString(workspaceFlagNameConstant)
		synchronization.WorkspacePath = commandPathExpander.Expand(strings.TrimSpace(workspacePath))
	}
	if noLock, _ := command.Flags().GetBool(noLockFlagNameConstant); noLock {
		synchronization.LockDestination = false
	}

	debugEnabled := false
	contextAccessor := utils.NewCommandContextAccessor()
	if logLevel, available := contextAccessor.LogLevel(command.Context()); available {
		debugEnabled = strings.EqualFold(logLevel, string(utils.LogLevelDebug))
	}
	if dryRun, available := contextAccessor.DryRun(command.Context()); available {
		synchronization.DryRun = dryRun
	}

	return commandOptions{
		debugLoggingEnabled: debugEnabled,
		synchronization:     synchronization,
	}, nil
}

func (builder *CommandBuilder) resolveLogger(enableDebug bool) *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if enableDebug {
		logger = logger.WithOptions(zap.IncreaseLevel(zapcore.DebugLevel))
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(command *cobra.Command, logger *zap.Logger, enableDiagnostics bool) (gitrepo.GitExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	commandRunner := execshell.NewOSCommandRunner()
	if enableDiagnostics {
		commandRunner = execshell.NewOSCommandRunnerWithDiagnostics(command.ErrOrStderr())
	}
	humanReadableLogging := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadableLogging = builder.HumanReadableLoggingProvider()
	}
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, humanReadableLogging)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (Synchronizer, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}

	provided := builder.ConfigurationProvider()
	return provided.Sanitize()
}

func (builder *CommandBuilder) logSummary(logger *zap.Logger, options Options, result Result) {
	message := synchronizationCompletedMessageConstant
	if result.DryRun {
		message = synchronizationPlannedMessageConstant
	}
	logger.Info(
		message,
		zap.String(logFieldProtocolConstant, string(result.Protocol)),
		zap.String(logFieldSourceConstant, options.Source),
		zap.String(logFieldDestinationConstant, result.Destination),
		zap.String(logFieldSubdirectoryConstant, result.Locator.Subdirectory),
		zap.String(logFieldSourceBranchConstant, result.SourceBranch),
		zap.String(logFieldMigrateBranchConstant, options.MigrateBranch),
		zap.String(logFieldInitialCommitDateConstant, result.InitialCommitDate),
		zap.String(logFieldMigrateHeadConstant, result.MigrateHead),
	)
}
