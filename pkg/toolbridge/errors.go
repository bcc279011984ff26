package toolbridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed is wrapped by a TransportError when Call is used after Close.
	ErrClosed = errors.New("tool server bridge is closed")
	// ErrNoResponse matches a ProtocolError raised when the child closed its
	// output before writing a non-blank line.
	ErrNoResponse = errors.New("tool server closed its output without responding")
	// ErrMalformedResponse matches a ProtocolError raised for a response line
	// that is not valid JSON.
	ErrMalformedResponse = errors.New("tool server sent a malformed response")
)

// LaunchError reports that the child process could not be started. No request
// was sent.
type LaunchError struct {
	Command string
	Args    []string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TransportError reports a failure moving bytes to or from the child. When the
// child had already exited, ExitCode and Stderr carry its diagnostics.
type TransportError struct {
	Op       string
	Err      error
	ExitCode int
	Stderr   string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v%s", e.Op, e.Err, diagnostics(e.ExitCode, e.Stderr))
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolErrorKind distinguishes the two ways a response line can be unusable.
type ProtocolErrorKind int

const (
	NoResponse ProtocolErrorKind = iota + 1
	Malformed
)

func (k ProtocolErrorKind) String() string {
	switch k {
	case NoResponse:
		return "no response"
	case Malformed:
		return "malformed response"
	default:
		return "protocol error"
	}
}

// ProtocolError reports a response that violates the line-delimited JSON
// framing. Line holds the raw offending text for Malformed errors.
type ProtocolError struct {
	Kind     ProtocolErrorKind
	Line     string
	Err      error
	ExitCode int
	Stderr   string
}

func (e *ProtocolError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Kind == Malformed {
		sb.WriteString(fmt.Sprintf(" %q", e.Line))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	sb.WriteString(diagnostics(e.ExitCode, e.Stderr))
	return sb.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is lets callers test the kind with errors.Is(err, ErrNoResponse) and
// errors.Is(err, ErrMalformedResponse).
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrNoResponse:
		return e.Kind == NoResponse
	case ErrMalformedResponse:
		return e.Kind == Malformed
	}
	return false
}

func diagnostics(exitCode int, stderr string) string {
	var parts []string
	if exitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit_code=%d", exitCode))
	}
	if s := strings.TrimSpace(stderr); s != "" {
		parts = append(parts, fmt.Sprintf("stderr=%q", s))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, " ") + ")"
}
