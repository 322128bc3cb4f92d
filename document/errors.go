package document

import (
	"fmt"
	"io/fs"
)

// NotFoundError is returned when a configuration file does not exist.
// It unwraps to fs.ErrNotExist, so errors.Is(err, fs.ErrNotExist) works.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not load config file %q: file not found", e.Path)
}

func (e *NotFoundError) Unwrap() error {
	return fs.ErrNotExist
}

// ParseError is returned when input text is malformed or a tagged
// payload cannot be decoded. A partial document is never returned
// alongside a ParseError.
type ParseError struct {
	// Path is the file the input came from. Empty for stream input.
	Path string

	// Reason describes the malformed node.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.Path == "" {
		return fmt.Sprintf("parse error: %s", msg)
	}
	return fmt.Sprintf("parse error in %q: %s", e.Path, msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnknownTagError is returned when the input contains a custom tag that
// is not registered. In safe mode this is the only way a tag can fail
// to resolve; arbitrary type construction is never attempted.
type UnknownTagError struct {
	Tag string
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag %q", e.Tag)
}

// UnsupportedTypeError is returned when a value has no registered
// representer and is not one of the built-in scalar, sequence, or
// mapping types.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot represent value of type %s", e.Type)
}
