package sockerr

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Translator turns raw system call failures into *Error values. It remembers the
// last errno it saw so a code with no known description can fall back to it.
// A Translator belongs to one operation and is not safe for concurrent use.
type Translator struct {
	last unix.Errno
}

// NewTranslator returns a Translator with no observed code.
func NewTranslator() *Translator {
	return &Translator{}
}

// Last returns the most recently observed errno.
func (t *Translator) Last() unix.Errno {
	return t.last
}

// Translate wraps err as a typed failure of the given kind. Errors that do not
// carry an errno are reported with EIO.
func (t *Translator) Translate(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	code, ok := errnoOf(err)
	if !ok {
		code = unix.EIO
	}
	desc, found := Describe(code)
	if !found && t.last != 0 {
		desc, _ = Describe(t.last)
	}
	t.last = code
	return errors.WithStack(&Error{
		Kind:        kind,
		Code:        code,
		Description: desc,
		cause:       err,
	})
}

// Errno is Translate for call sites that only hold a code.
func (t *Translator) Errno(kind Kind, code unix.Errno) error {
	return t.Translate(kind, code)
}

// Describe renders code as "message (NAME)". The second result is false when the
// platform has no text for the code.
func Describe(code unix.Errno) (string, bool) {
	msg := code.Error()
	name := unix.ErrnoName(code)
	if name == "" || strings.HasPrefix(msg, "errno ") {
		return msg, false
	}
	return msg + " (" + name + ")", true
}

func errnoOf(err error) (unix.Errno, bool) {
	var code unix.Errno
	if errors.As(err, &code) && code != 0 {
		return code, true
	}
	return 0, false
}
