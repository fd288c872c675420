// Package checkpoint decorates errors with the location they passed through on
// their way up, which reads like a short stacktrace when printed.
// The sentinel given to Wrap stays visible to errors.Is and errors.As, and so does
// the original cause.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From records the caller of From on err.
// It returns nil if err is nil.
func From(err error) error {
	if err == nil || passThrough(err) {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap records the caller of Wrap on cause and tags it with sentinel.
// Both the sentinel and the cause match errors.Is afterwards:
//
//	var ErrReadFail = errors.New("device read failed")
//
//	func readSector(dev Device, addr uint32) error {
//		err := dev.ReadBlock(addr, &block)
//		return checkpoint.Wrap(err, ErrReadFail)
//	}
//
// Wrap returns nil if cause is nil, so it can be applied to every return path.
// A nil sentinel behaves like From.
func Wrap(cause, sentinel error) error {
	if cause == nil || passThrough(cause) {
		return cause
	}

	return newCheckpoint(cause, sentinel)
}

// passThrough reports errors which callers compare by identity and must never be wrapped.
// https://github.com/golang/go/issues/39155
func passThrough(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func newCheckpoint(cause, sentinel error) *checkpoint {
	// Skip newCheckpoint and the exported caller.
	_, file, line, ok := runtime.Caller(2)
	c := &checkpoint{
		sentinel: sentinel,
		cause:    cause,
		line:     -1,
	}
	if ok {
		c.file = filepath.Base(file)
		c.line = line
	}
	return c
}

type checkpoint struct {
	sentinel error
	cause    error

	file string
	line int
}

func (c *checkpoint) location() string {
	if c.line < 0 {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", c.file, c.line)
}

func (c *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString("at ")
	b.WriteString(c.location())
	if c.sentinel != nil {
		b.WriteString(": ")
		b.WriteString(c.sentinel.Error())
	}

	cause := c.cause.Error()
	if _, ok := c.cause.(*checkpoint); !ok {
		cause = "at unknown: " + cause
	}
	b.WriteString("\n\t")
	b.WriteString(strings.ReplaceAll(cause, "\n", "\n\t"))
	return b.String()
}

func (c *checkpoint) Unwrap() error {
	return c.cause
}

func (c *checkpoint) Is(target error) bool {
	return c.sentinel != nil && errors.Is(c.sentinel, target)
}

func (c *checkpoint) As(target interface{}) bool {
	return c.sentinel != nil && errors.As(c.sentinel, target)
}
