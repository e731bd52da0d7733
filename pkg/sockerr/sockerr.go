// Package sockerr maps kernel socket failures into typed errors.
//
// This is the only package that looks at raw errno values. Everything above it
// matches on Kind.
package sockerr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Kind identifies which lifecycle step failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindSocketCreation
	KindBind
	KindAddressQuery
	KindListen
	KindAccept
	KindConnect
	KindReceive
	KindSend
	KindAddressParse
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindSocketCreation: "socket creation",
	KindBind:           "bind",
	KindAddressQuery:   "address query",
	KindListen:         "listen",
	KindAccept:         "accept",
	KindConnect:        "connect",
	KindReceive:        "receive",
	KindSend:           "send",
	KindAddressParse:   "address parse",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure surfaced by every socket operation.
type Error struct {
	Kind        Kind
	Code        unix.Errno // zero for KindAddressParse
	Description string
	Input       string // offending text for KindAddressParse

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == KindAddressParse {
		if e.Description != "" {
			return fmt.Sprintf("%s error: %q: %s", e.Kind, e.Input, e.Description)
		}
		return fmt.Sprintf("%s error: %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err carries a *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// CodeOf returns the errno carried by err, or zero.
func CodeOf(err error) unix.Errno {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// AddressParse builds the input-validation failure raised before any socket call.
func AddressParse(input string, reason string) error {
	return errors.WithStack(&Error{
		Kind:        KindAddressParse,
		Input:       input,
		Description: strings.TrimSpace(reason),
	})
}
