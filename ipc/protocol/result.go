package protocol

import (
	"fmt"

	"github.com/bearlytools/xrtipc/errors"
	"github.com/gostdlib/base/context"
)

// Result is the status at the start of every response.
type Result int32

const (
	ResultSuccess               Result = 0
	ResultFailure               Result = -1
	ResultSessionNotCreated     Result = -2
	ResultSessionAlreadyCreated Result = -3
	ResultResourceExhausted     Result = -4
	ResultInvalidHandle         Result = -5
	ResultUnknownLayer          Result = -6
	ResultPoseNotActive         Result = -7
	ResultUnsupported           Result = -8
	ResultCompositor            Result = -9
	ResultShutdown              Result = -10
	ResultParameter             Result = -11
)

var resultTypes = map[Result]errors.Type{
	ResultSessionNotCreated:     errors.TypeSessionNotCreated,
	ResultSessionAlreadyCreated: errors.TypeSessionAlreadyCreated,
	ResultResourceExhausted:     errors.TypeResourceExhausted,
	ResultInvalidHandle:         errors.TypeInvalidHandle,
	ResultUnknownLayer:          errors.TypeUnknownLayer,
	ResultPoseNotActive:         errors.TypePoseNotActive,
	ResultUnsupported:           errors.TypeUnsupported,
	ResultCompositor:            errors.TypeCompositor,
	ResultShutdown:              errors.TypeShutdown,
	ResultParameter:             errors.TypeParameter,
}

// ResultFor maps an error returned by a request handler to the result sent to the client.
// A nil error is ResultSuccess. Errors without a known Type are ResultFailure.
func ResultFor(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	t := errors.TypeOf(err)
	for r, rt := range resultTypes {
		if rt == t {
			return r
		}
	}
	return ResultFailure
}

// Err turns a result received from the server back into an error with the matching Type.
// ResultSuccess returns nil.
func (r Result) Err(ctx context.Context, cmd Command) error {
	if r == ResultSuccess {
		return nil
	}
	t, ok := resultTypes[r]
	if !ok {
		t = errors.TypeUnknown
	}
	return errors.E(ctx, errors.CatUser, t, fmt.Errorf("server returned %s for %s", r, cmd), errors.WithCallNum(2))
}

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	}
	if t, ok := resultTypes[r]; ok {
		return t.String()
	}
	return fmt.Sprintf("Result(%d)", int32(r))
}
