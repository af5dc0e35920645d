package synchronize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/mono2repo/internal/execshell"
)

// ProtocolName identifies a synchronization protocol.
type ProtocolName string

// Supported protocols.
const (
	ProtocolNameCreate ProtocolName = ProtocolName("create")
	ProtocolNameUpdate ProtocolName = ProtocolName("update")
)

const (
	// EarliestCommitDatePlaceholder stands in for the anchor date when the history cannot be read in a dry run.
	EarliestCommitDatePlaceholder = "<earliest-commit-date>"
	// InitialCommitMessage is the message of the empty commit seeding a created destination.
	InitialCommitMessage = "Initial commit"

	gitLogSubcommandConstant           = "log"
	gitReverseFlagConstant             = "--reverse"
	earliestCommitFormatFlagConstant   = "--format=%h|%cI|%s"
	logRecordSeparatorConstant         = "|"
	logRecordDateFieldIndexConstant    = 1
	gitCommitSubcommandConstant        = "commit"
	gitAllowEmptyFlagConstant          = "--allow-empty"
	gitMessageFlagConstant             = "-m"
	gitDateFlagConstant                = "--date"
	committerDateEnvironmentConstant   = "GIT_COMMITTER_DATE"
	gitCheckoutSubcommandConstant      = "checkout"
	gitCreateBranchFlagConstant        = "-b"
	gitResetBranchFlagConstant         = "-B"
	gitTrackFlagConstant               = "--track"
	destinationHasHistoryTemplate      = "%w: %s has branch %s"
	destinationNotInitializedTemplate  = "%w: %s has no branch %s"
	historyReadErrorTemplateConstant   = "unable to read filtered history: %w"
	malformedLogRecordTemplateConstant = "unexpected history record %q"
	emptyHistoryTemplateConstant       = "%w in %s"
	destinationInitErrorTemplate       = "unable to initialize destination: %w"
	initialCommitErrorTemplateConstant = "unable to create initial commit: %w"
	branchPreparationErrorTemplate     = "unable to prepare branch %s from %s: %w"
	earliestCommitDateMessageConstant  = "Earliest filtered commit date"
	destinationReusedMessageConstant   = "Reusing initialized destination"
	logFieldDateConstant               = "date"
	logFieldDestinationConstant        = "destination"
	logFieldMainlineBranchConstant     = "mainline_branch"
)

// Protocol supplies the steps in which create and update differ; the Service runs the shared backbone
// around them.
type Protocol interface {
	Name() ProtocolName
	// CheckDestination validates the destination before any work; it must not mutate anything.
	CheckDestination(executionContext context.Context, session *Session) error
	// InitializeDestination runs after the history filter and before the temporary remote is attached.
	InitializeDestination(executionContext context.Context, session *Session) error
	// PrepareBranch points the migrate branch at the fetched history.
	PrepareBranch(executionContext context.Context, session *Session) error
}

// ProtocolCreate returns the first-time extraction protocol.
func ProtocolCreate() Protocol {
	return createProtocol{}
}

// ProtocolUpdate returns the repeatable re-synchronization protocol.
func ProtocolUpdate() Protocol {
	return updateProtocol{}
}

// ProtocolFor returns the protocol registered under name.
func ProtocolFor(name string) (Protocol, error) {
	switch ProtocolName(strings.ToLower(strings.TrimSpace(name))) {
	case ProtocolNameCreate:
		return ProtocolCreate(), nil
	case ProtocolNameUpdate:
		return ProtocolUpdate(), nil
	default:
		return nil, InvalidInputError{FieldName: protocolFieldNameConstant, Message: fmt.Sprintf(unknownProtocolMessageTemplateConstant, name)}
	}
}

// ParseEarliestCommitDate extracts the commit date from the first record of an oldest-first
// "%h|%cI|%s" log.
func ParseEarliestCommitDate(logOutput string) (string, error) {
	trimmedOutput := strings.TrimSpace(logOutput)
	if len(trimmedOutput) == 0 {
		return "", ErrEmptyHistory
	}
	firstRecord, _, _ := strings.Cut(trimmedOutput, "\n")
	fields := strings.SplitN(strings.TrimSpace(firstRecord), logRecordSeparatorConstant, logRecordDateFieldIndexConstant+2)
	if len(fields) <= logRecordDateFieldIndexConstant || len(strings.TrimSpace(fields[logRecordDateFieldIndexConstant])) == 0 {
		return "", fmt.Errorf(malformedLogRecordTemplateConstant, firstRecord)
	}
	return strings.TrimSpace(fields[logRecordDateFieldIndexConstant]), nil
}

type createProtocol struct{}

func (createProtocol) Name() ProtocolName {
	return ProtocolNameCreate
}

func (createProtocol) CheckDestination(executionContext context.Context, session *Session) error {
	if session.DestinationInitialized(executionContext) {
		return fmt.Errorf(destinationHasHistoryTemplate, ErrDestinationHasHistory, session.Destination, session.MainlineBranch)
	}
	return nil
}

// InitializeDestination anchors the new mainline at the earliest filtered commit date.
func (protocol createProtocol) InitializeDestination(executionContext context.Context, session *Session) error {
	initialCommitDate, dateError := protocol.earliestCommitDate(executionContext, session)
	if dateError != nil {
		return dateError
	}
	session.InitialCommitDate = initialCommitDate
	session.Logger().Debug(earliestCommitDateMessageConstant, zap.String(logFieldDateConstant, initialCommitDate))

	if initError := session.Destination.Init(executionContext, session.MainlineBranch, session.Policy()); initError != nil {
		return fmt.Errorf(destinationInitErrorTemplate, initError)
	}

	commitArguments := []string{
		gitCommitSubcommandConstant, gitAllowEmptyFlagConstant,
		gitMessageFlagConstant, InitialCommitMessage,
		gitDateFlagConstant, initialCommitDate,
	}
	commitEnvironment := map[string]string{committerDateEnvironmentConstant: initialCommitDate}
	if _, commitError := session.Destination.RunWithEnvironment(executionContext, commitArguments, commitEnvironment, session.Policy()); commitError != nil {
		return fmt.Errorf(initialCommitErrorTemplateConstant, commitError)
	}
	return nil
}

func (createProtocol) PrepareBranch(executionContext context.Context, session *Session) error {
	return checkoutTrackingBranch(executionContext, session, gitCreateBranchFlagConstant)
}

func (createProtocol) earliestCommitDate(executionContext context.Context, session *Session) (string, error) {
	if session.DryRun() {
		return EarliestCommitDatePlaceholder, nil
	}
	logOutput, logError := session.Legacy.Run(executionContext, []string{gitLogSubcommandConstant, gitReverseFlagConstant, earliestCommitFormatFlagConstant}, execshell.ExecutionPolicy{Silent: true})
	if logError != nil {
		return "", fmt.Errorf(historyReadErrorTemplateConstant, logError)
	}
	initialCommitDate, parseError := ParseEarliestCommitDate(logOutput)
	if parseError != nil {
		return "", fmt.Errorf(historyReadErrorTemplateConstant, parseError)
	}
	return initialCommitDate, nil
}

type updateProtocol struct{}

func (updateProtocol) Name() ProtocolName {
	return ProtocolNameUpdate
}

func (updateProtocol) CheckDestination(executionContext context.Context, session *Session) error {
	if !session.DestinationInitialized(executionContext) {
		return fmt.Errorf(destinationNotInitializedTemplate, ErrDestinationNotInitialized, session.Destination, session.MainlineBranch)
	}
	return nil
}

func (updateProtocol) InitializeDestination(_ context.Context, session *Session) error {
	session.Logger().Debug(destinationReusedMessageConstant,
		zap.String(logFieldDestinationConstant, session.Destination.Worktree()),
		zap.String(logFieldMainlineBranchConstant, session.MainlineBranch),
	)
	return nil
}

// PrepareBranch force-recreates the migrate branch so every run rebases from the same base.
func (updateProtocol) PrepareBranch(executionContext context.Context, session *Session) error {
	return checkoutTrackingBranch(executionContext, session, gitResetBranchFlagConstant)
}

func checkoutTrackingBranch(executionContext context.Context, session *Session, branchFlag string) error {
	checkoutArguments := []string{gitCheckoutSubcommandConstant, branchFlag, session.MigrateBranch, gitTrackFlagConstant, session.TrackedReference()}
	if _, checkoutError := session.Destination.Run(executionContext, checkoutArguments, session.Policy()); checkoutError != nil {
		return fmt.Errorf(branchPreparationErrorTemplate, session.MigrateBranch, session.TrackedReference(), checkoutError)
	}
	return nil
}
