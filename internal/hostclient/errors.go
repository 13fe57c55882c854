package hostclient

import "fmt"

// ErrorKind categorizes host-client failures per the error taxonomy in
// spec.md §7. Callers branch on kind, not on type, to decide policy:
// transient errors are retried next cycle, remote-unreachable errors are
// surfaced as a structured "unavailable" result, and so on.
type ErrorKind string

const (
	// KindTransient covers network timeouts, connection resets, and
	// daemon restarts. Policy: log at warn, skip this cycle, retry next.
	KindTransient ErrorKind = "transient"
	// KindConfig covers unknown actions, invalid container IDs, and
	// malformed requests. Policy: surface as 4xx to the caller.
	KindConfig ErrorKind = "config"
	// KindRemoteUnreachable covers Swarm worker containers the manager
	// client cannot route an operation to. Policy: return a structured
	// "unavailable" result, never block.
	KindRemoteUnreachable ErrorKind = "remote_unreachable"
	// KindClosing covers requests that arrive while a client is shutting
	// down. Policy: short-circuit immediately, no logging.
	KindClosing ErrorKind = "closing"
	// KindFatal covers unrecoverable startup failures.
	KindFatal ErrorKind = "fatal"
)

// Error wraps an underlying error with a taxonomy kind.
type Error struct {
	Kind ErrorKind
	Op   string // operation being attempted, e.g. "ContainerStats"
	Host string
	Err  error
}

func (e *Error) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("%s on %s: %s: %v", e.Op, e.Host, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a categorized Error.
func NewError(kind ErrorKind, op, host string, err error) *Error {
	return &Error{Kind: kind, Op: op, Host: host, Err: err}
}

// IsKind reports whether err (or any error it wraps) is a hostclient.Error
// of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var he *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			he = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return he != nil && he.Kind == kind
}
