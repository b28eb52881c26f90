// Package errors provides the error taxonomy for the IPC broker.
//
// Errors returned from request handlers are created with E() and carry a Category and a Type.
// The Type decides how the error travels back to a client (see ipc/protocol.ResultFor) and
// whether the connection survives it.
package errors

import (
	"github.com/gostdlib/base/context"
	"github.com/gostdlib/base/errors"
)

//go:generate stringer -type=Category -linecomment

// Category represents the category of the error.
type Category uint32

func (c Category) Category() string {
	return c.String()
}

const (
	// CatUnknown represents an unknown category. This should not be used.
	CatUnknown Category = Category(0) // Unknown
	// CatUser represents an error that is caused by a client request that was not valid
	// for the session's current state.
	CatUser Category = Category(1) // User
	// CatInternal represents an internal error.
	CatInternal Category = Category(2) // Internal
)

//go:generate stringer -type=Type -linecomment

// Type represents the type of the error.
type Type uint16

func (t Type) Type() string {
	return t.String()
}

const (
	// TypeUnknown represents an unknown type.
	TypeUnknown Type = Type(0) // Unknown
	// TypeBug represents a bug in the calling code or a collaborator breaking its contract.
	TypeBug Type = Type(1) // Bug
	// TypeParameter represents an error with a parameter that didn't pass validation.
	TypeParameter Type = Type(2) // Parameter
	// TypeConn represents an error with a connection. These are fatal to that one connection.
	TypeConn Type = Type(3) // Conn
	// TypeTimeout represents a timeout error or cancelation.
	TypeTimeout Type = Type(4) // TimeoutOrCancel
	// TypeFS represents an error with the file system.
	TypeFS Type = Type(5) // FS

	// TypeSessionNotCreated is returned when a request needs a session compositor that
	// has not been created yet.
	TypeSessionNotCreated Type = Type(100) // SessionNotCreated
	// TypeSessionAlreadyCreated is returned by a second session create on the same connection.
	TypeSessionAlreadyCreated Type = Type(101) // SessionAlreadyCreated
	// TypeResourceExhausted is returned when a fixed capacity table has no free slot.
	TypeResourceExhausted Type = Type(102) // ResourceExhausted
	// TypeInvalidHandle is returned when a client references a slot, device or client
	// index that does not resolve.
	TypeInvalidHandle Type = Type(103) // InvalidHandle
	// TypeUnknownLayer is returned for a layer entry with a type the dispatcher can't project.
	TypeUnknownLayer Type = Type(104) // UnknownLayer
	// TypePoseNotActive is returned when a pose is read from an input that is not active.
	TypePoseNotActive Type = Type(105) // PoseNotActive
	// TypeUnsupported is the valid-but-unsupported subtype of collaborator failures.
	TypeUnsupported Type = Type(106) // Unsupported
	// TypeCompositor is a generic failure reported by the compositor collaborator.
	TypeCompositor Type = Type(107) // Compositor
	// TypeShutdown is returned when the server is shutting down.
	TypeShutdown Type = Type(108) // Shutdown
)

// LogAttrer is an interface that can be implemented by an error to return a list of attributes
// used in logging.
type LogAttrer = errors.LogAttrer

// EOption is an optional argument for E().
type EOption = errors.EOption

// WithSuppressTraceErr will prevent the trace as being recorded with an error status.
// The trace will still receive the error message. Protocol errors that are expected in
// normal operation use this.
func WithSuppressTraceErr() EOption {
	return errors.WithSuppressTraceErr()
}

// WithCallNum is used if you need to set the runtime.CallNum() in order to get the correct filename and line.
// This can happen if you create a call wrapper around E(), because you would then need to look up one more stack frame
// for every wrapper. This defaults to 1 which sets to the frame of the caller of E().
func WithCallNum(i int) EOption {
	return errors.WithCallNum(i)
}

// Error is the error type for this service. It carries the gostdlib error that
// records telemetry and the Category and Type that created it.
type Error struct {
	cat Category
	typ Type
	err error
}

// Error implements error.
func (e *Error) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying gostdlib error.
func (e *Error) Unwrap() error {
	return e.err
}

// Category returns the error's Category.
func (e *Error) Category() Category {
	return e.cat
}

// Type returns the error's Type.
func (e *Error) Type() Type {
	return e.typ
}

// E creates a new Error with the given parameters.
func E(ctx context.Context, c Category, t Type, msg error, options ...EOption) error {
	// This makes sure we do the correct call number since we are a wrapper. Now, if they set the
	// call number, this will not override it.
	opts := make([]errors.EOption, 0, len(options)+1)
	opts = append(opts, WithCallNum(2))
	opts = append(opts, options...)

	return &Error{cat: c, typ: t, err: errors.E(ctx, c, t, msg, opts...)}
}

// TypeOf returns the Type of the first *Error in err's chain, TypeUnknown if there is none.
func TypeOf(err error) Type {
	var e *Error
	if As(err, &e) {
		return e.typ
	}
	return TypeUnknown
}

// CategoryOf returns the Category of the first *Error in err's chain, CatUnknown if there is none.
func CategoryOf(err error) Category {
	var e *Error
	if As(err, &e) {
		return e.cat
	}
	return CatUnknown
}
