package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation            = errors.New("validation_error")
	ErrConstraintViolation   = errors.New("constraint_violation")
	ErrSlotOccupied          = errors.New("slot_occupied")
	ErrInvalidContainerState = errors.New("invalid_container_state")
	ErrInconsistentState     = errors.New("inconsistent_state")
	ErrTerminalState         = errors.New("terminal_state")
	ErrPermissionDenied      = errors.New("permission_denied")
	ErrNotFound              = errors.New("not_found")
)

// Error carries the failing entity and operation alongside its kind so
// callers can render a precise message. errors.Is matches the kind.
type Error struct {
	Kind    error
	Entity  string
	ID      string
	Op      string
	Field   string
	Message string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Entity != "" {
		b.WriteString(" ")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString("(")
			b.WriteString(e.ID)
			b.WriteString(")")
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(entity string, id any) *Error {
	return &Error{Kind: ErrNotFound, Entity: entity, ID: fmt.Sprint(id)}
}

func SlotOccupied(slotID, containerID any) *Error {
	return &Error{
		Kind:    ErrSlotOccupied,
		Entity:  "yard_slot",
		ID:      fmt.Sprint(slotID),
		Message: fmt.Sprintf("held by container %v", containerID),
	}
}

func InvalidContainerState(containerID any, status, op string) *Error {
	return &Error{
		Kind:    ErrInvalidContainerState,
		Entity:  "container",
		ID:      fmt.Sprint(containerID),
		Op:      op,
		Message: "container is " + status,
	}
}

func Inconsistent(entity string, id any, format string, args ...any) *Error {
	return &Error{Kind: ErrInconsistentState, Entity: entity, ID: fmt.Sprint(id), Message: fmt.Sprintf(format, args...)}
}

func Terminal(entity string, id any, status string) *Error {
	return &Error{Kind: ErrTerminalState, Entity: entity, ID: fmt.Sprint(id), Message: "status " + status + " is final"}
}

func PermissionDenied(role, kind, op string) *Error {
	return &Error{Kind: ErrPermissionDenied, Entity: kind, Op: op, Message: "role " + role + " may not " + op + " " + kind}
}

func Constraint(entity string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: ErrConstraintViolation, Entity: entity, Message: msg}
}

// As extracts the typed error, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}
