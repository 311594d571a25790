package source

import (
	"fmt"
	"strings"

	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/pipeline"
)

// OperationKey is the Context key consumers read their operation from.
const OperationKey = "data.consumer.operation"

// Operation is the write a DataSink performs.
type Operation int

const (
	Create Operation = iota + 1
	Update
	Upsert
	Delete
)

var operationNames = map[Operation]string{
	Create: "Create",
	Update: "Update",
	Upsert: "Upsert",
	Delete: "Delete",
}

func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// OperationParser turns the raw Context value into an operation of type O.
type OperationParser[O any] func(v any) (O, error)

// ParseOperation accepts an Operation, or its name in any case.
func ParseOperation(v any) (Operation, error) {
	switch op := v.(type) {
	case Operation:
		if _, ok := operationNames[op]; ok {
			return op, nil
		}
		return 0, errors.UnsupportedOperation(op.String())
	case string:
		return parseNamed(op, operationNames)
	case fmt.Stringer:
		return parseNamed(op.String(), operationNames)
	default:
		return 0, errors.UnsupportedOperation(fmt.Sprint(v))
	}
}

// EmailOperation is the operation set of mail-style sinks.
type EmailOperation int

const (
	Send EmailOperation = iota + 1
	Receive
	MarkAsRead
	MarkAsUnread
	DeleteMail
	Answered
)

var emailOperationNames = map[EmailOperation]string{
	Send:         "Send",
	Receive:      "Receive",
	MarkAsRead:   "MarkAsRead",
	MarkAsUnread: "MarkAsUnread",
	DeleteMail:   "Delete",
	Answered:     "Answered",
}

func (o EmailOperation) String() string {
	if n, ok := emailOperationNames[o]; ok {
		return n
	}
	return fmt.Sprintf("EmailOperation(%d)", int(o))
}

// ParseEmailOperation accepts an EmailOperation, or its name in any case.
func ParseEmailOperation(v any) (EmailOperation, error) {
	switch op := v.(type) {
	case EmailOperation:
		if _, ok := emailOperationNames[op]; ok {
			return op, nil
		}
		return 0, errors.UnsupportedOperation(op.String())
	case string:
		return parseNamed(op, emailOperationNames)
	default:
		return 0, errors.UnsupportedOperation(fmt.Sprint(v))
	}
}

func parseNamed[O comparable](name string, names map[O]string) (O, error) {
	for op, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return op, nil
		}
	}
	var zero O
	return zero, errors.UnsupportedOperation(name)
}

// WithOperation stores op under OperationKey and returns pctx. A nil pctx
// gets a fresh Context.
func WithOperation(pctx *pipeline.Context, op any) *pipeline.Context {
	if pctx == nil {
		pctx = pipeline.NewContext()
	}
	pctx.Set(OperationKey, op)
	return pctx
}
