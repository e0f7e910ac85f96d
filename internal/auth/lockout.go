package auth

import (
	"errors"
	"fmt"

	"scheinicam/internal/services"
)

// lockoutSchedule maps consecutive failures to the wait in seconds. Failures
// beyond the table use the last entry.
var lockoutSchedule = [...]uint{0, 2, 5, 10, 30}

// LockoutSeconds returns how long to lock the login after attempts
// consecutive failures.
func LockoutSeconds(attempts uint) uint {
	if attempts >= uint(len(lockoutSchedule)) {
		return lockoutSchedule[len(lockoutSchedule)-1]
	}
	return lockoutSchedule[attempts]
}

// LockedOutError is returned by Login while the countdown is running.
type LockedOutError struct {
	Remaining uint
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("login locked: %d seconds remaining", e.Remaining)
}

// Is makes LockedOutError match services.ErrLockedOut.
func (e *LockedOutError) Is(target error) bool {
	return target == services.ErrLockedOut
}

// UserMessage is the text stored in the session's error field.
func (e *LockedOutError) UserMessage() string {
	return fmt.Sprintf("too many failed attempts, %d seconds remaining", e.Remaining)
}

// RemainingLockout extracts the remaining seconds from a lockout error.
func RemainingLockout(err error) (uint, bool) {
	var locked *LockedOutError
	if errors.As(err, &locked) {
		return locked.Remaining, true
	}
	return 0, false
}
