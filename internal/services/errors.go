package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport          = errors.New("transport failure")
	ErrServerDeclined     = errors.New("server declined")
	ErrRejectedCredential = errors.New("credential rejected")
	ErrLockedOut          = errors.New("locked out")
	ErrValidation         = errors.New("validation error")
	ErrConfiguration      = errors.New("configuration error")
)

// Messages stored in container error fields for the generic failure classes.
const (
	MessageConnection        = "connection error"
	MessageIncorrectPassword = "incorrect password"
)

// UserMessager is implemented by errors that carry their own human-readable
// text (server detail messages, lockout countdowns).
type UserMessager interface {
	UserMessage() string
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UserMessage maps a container failure to the text recorded in that
// container's error field. Transport failures always collapse to the generic
// connection message; errors with their own text surface it as-is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTransport) {
		return MessageConnection
	}
	var messager UserMessager
	if errors.As(err, &messager) {
		if msg := strings.TrimSpace(messager.UserMessage()); msg != "" {
			return msg
		}
	}
	if errors.Is(err, ErrRejectedCredential) {
		return MessageIncorrectPassword
	}
	return err.Error()
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "request failure"
	}
	return strings.Join(parts, ": ")
}

// DeclinedError reports a reply that arrived intact but said success:false.
type DeclinedError struct {
	Component string
	Operation string
	Message   string
}

// Declined builds a DeclinedError. An empty message falls back to a generic one.
func Declined(component, operation, message string) error {
	return &DeclinedError{Component: component, Operation: operation, Message: strings.TrimSpace(message)}
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrServerDeclined, buildDetail(e.Component, e.Operation, e.Message))
}

// Is makes DeclinedError match ErrServerDeclined.
func (e *DeclinedError) Is(target error) bool {
	return target == ErrServerDeclined
}

// UserMessage returns the server's message or a generic refusal.
func (e *DeclinedError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Operation != "" {
		return e.Operation + " was declined by the server"
	}
	return "request declined by the server"
}
