package synchronize

import (
	"errors"
	"fmt"
)

const (
	emptyHistoryMessageConstant              = "filtered history has no commits"
	destinationNotInitializedMessageConstant = "destination repository is not initialized"
	destinationHasHistoryMessageConstant     = "destination repository already has history"
	rebaseFailedMessageConstant              = "rebase onto mainline failed"
	requiredValueMessageConstant             = "value required"
	unknownProtocolMessageTemplateConstant   = "unknown protocol %q"
	protocolFieldNameConstant                = "protocol"
	destinationFieldNameConstant             = "destination"
	migrateBranchFieldNameConstant           = "migrate_branch"
	sameBranchesMessageConstant              = "must differ from mainline_branch"
	invalidInputErrorTemplateConstant        = "%s: %s"
)

var (
	// ErrEmptyHistory indicates the filtered clone has no commits to extract.
	ErrEmptyHistory = errors.New(emptyHistoryMessageConstant)
	// ErrDestinationNotInitialized indicates update was run against a destination without its mainline branch.
	ErrDestinationNotInitialized = errors.New(destinationNotInitializedMessageConstant)
	// ErrDestinationHasHistory indicates create was run against a destination whose mainline already exists.
	ErrDestinationHasHistory = errors.New(destinationHasHistoryMessageConstant)
	// ErrRebaseFailed indicates the migrate branch could not be rebased onto the mainline. The destination is
	// left mid-rebase for manual inspection.
	ErrRebaseFailed = errors.New(rebaseFailedMessageConstant)
)

// InvalidInputError describes synchronization option validation failures.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}
