package xrt

import "os"

// AtMostOne holds either no value or exactly one. It is how optional sync primitives are handed
// to a compositor, so a compositor can never be given more than one.
type AtMostOne[T any] struct {
	v  T
	ok bool
}

// One returns an AtMostOne holding v.
func One[T any](v T) AtMostOne[T] {
	return AtMostOne[T]{v: v, ok: true}
}

// None returns an empty AtMostOne.
func None[T any]() AtMostOne[T] {
	return AtMostOne[T]{}
}

// Get returns the value and whether there was one.
func (a AtMostOne[T]) Get() (T, bool) {
	return a.v, a.ok
}

// Present reports if there is a value.
func (a AtMostOne[T]) Present() bool {
	return a.ok
}

// TakeFirstFile splits received handles into the first one and the rest. The caller owns the rest
// and must close them.
func TakeFirstFile(files []*os.File) (AtMostOne[*os.File], []*os.File) {
	if len(files) == 0 {
		return None[*os.File](), nil
	}
	return One(files[0]), files[1:]
}
