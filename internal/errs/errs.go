// Package errs holds the error taxonomy shared by every component.
// Component packages wrap these sentinels with narrower ones, so callers can
// match either level with errors.Is.
package errs

import "errors"

var (
	// ErrIO covers missing or unreadable files, unreadable directories and write failures.
	ErrIO = errors.New("io error")
	// ErrCorruptArchive is returned when a container directory cannot be parsed
	// or an internal entry cannot be read.
	ErrCorruptArchive = errors.New("corrupt archive")
	// ErrTransport covers failed HTTP transfers, including a missing content length.
	ErrTransport = errors.New("transport error")
	// ErrProtocol is returned for malformed inbound loopback requests.
	ErrProtocol = errors.New("protocol error")
)
