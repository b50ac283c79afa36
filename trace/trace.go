// Package trace decorates errors with the file and line of the call site,
// building a lightweight trail through the layers an error passed on its way
// up. Decorated errors remain transparent to errors.Is and errors.As so
// sentinel checks keep working regardless of how many times an error was
// decorated.
package trace

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// From decorates err with the caller's position. It returns nil for a nil
// error. io.EOF and io.ErrUnexpectedEOF pass through untouched because much
// of the standard library compares against them directly.
func From(err error) error {
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newPoint(err, nil)
}

// Wrap decorates cause with the caller's position and attaches sentinel as an
// additional error describing this point of the trail. The typical use is a
// package-level sentinel:
//
//	var ErrReadBlock = errors.New("could not read block")
//
//	if err := dev.fetch(n); err != nil {
//		return trace.Wrap(err, ErrReadBlock)
//	}
//
// The result satisfies errors.Is for both cause and sentinel. Wrap returns
// nil for a nil cause; io.EOF passes through untouched.
func Wrap(cause, sentinel error) error {
	if cause == nil || cause == io.EOF {
		return cause
	}

	return newPoint(sentinel, cause)
}

type point struct {
	err   error
	cause error
	site  string
}

func newPoint(err, cause error) *point {
	site := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		site = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	return &point{
		err:   err,
		cause: cause,
		site:  site,
	}
}

func (p *point) Error() string {
	switch {
	case p.err == nil:
		return fmt.Sprintf("at %s: %v", p.site, p.cause)
	case p.cause == nil:
		return fmt.Sprintf("at %s: %v", p.site, p.err)
	default:
		return fmt.Sprintf("at %s: %v: %v", p.site, p.err, p.cause)
	}
}

func (p *point) Unwrap() error {
	return p.cause
}

func (p *point) Is(target error) bool {
	return p.err != nil && errors.Is(p.err, target)
}

func (p *point) As(target interface{}) bool {
	return p.err != nil && errors.As(p.err, target)
}
