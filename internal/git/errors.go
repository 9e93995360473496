package git

import (
	"fmt"
	"strings"
)

// Base typed git errors enabling structured classification without string parsing upstream.
type AuthError struct {
	Op, Target string
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.Target, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, Target string
	Err        error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s: %v", e.Op, e.Target, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, Target string
	Err        error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.Target, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

// classifyTransportError wraps transport failures into typed variants when possible.
func classifyTransportError(op, target string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "auth"):
		return &AuthError{Op: op, Target: target, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist") ||
		strings.Contains(l, "couldn't find remote ref"):
		return &NotFoundError{Op: op, Target: target, Err: err}
	case strings.Contains(l, "unsupported protocol"):
		return &UnsupportedProtocolError{Op: op, Target: target, Err: err}
	default:
		return err
	}
}
