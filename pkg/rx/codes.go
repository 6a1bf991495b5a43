package rx

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a protocol result code. Codes implement error; success is a nil
// error, never a code.
type Code int

const (
	CodeModuleInactive = Code(iota + 1)
	CodePortAlreadyOpen
	CodePortAlreadyClosed
	CodeErrorCRCInvalid
	CodeErrorPortClosed
	CodeErrorInvalidType
	CodeNoMessagesAvailable
	CodeErrorInconsistentState
	CodeQueueFull
)

func (c Code) String() string {
	switch c {
	case CodeModuleInactive:
		return "MODULE_INACTIVE"
	case CodePortAlreadyOpen:
		return "PORT_ALREADY_OPEN"
	case CodePortAlreadyClosed:
		return "PORT_ALREADY_CLOSED"
	case CodeErrorCRCInvalid:
		return "CRC_INVALID"
	case CodeErrorPortClosed:
		return "PORT_CLOSED"
	case CodeErrorInvalidType:
		return "INVALID_TYPE"
	case CodeNoMessagesAvailable:
		return "NO_MESSAGES_AVAILABLE"
	case CodeErrorInconsistentState:
		return "INCONSISTENT_STATE"
	case CodeQueueFull:
		return "QUEUE_FULL"
	default:
		return fmt.Sprintf("** unknown code: %d **", int(c))
	}
}

func (c Code) Error() string {
	return c.String()
}

// ErrWindowExceeded rejects a data frame whose global sequence falls outside
// the reordering window. It is distinct from CodeQueueFull: the queue has
// room, the sequence space does not.
var ErrWindowExceeded = errors.New("global sequence outside reordering window")
