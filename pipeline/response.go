package pipeline

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ResponseState tags the outcome of a single Execute call.
type ResponseState int

const (
	Unknown ResponseState = iota
	Skipped
	NullData
	OK
	ContinueWithError
	StopWithError
	StopWithOk
	FatalError
	UnhandledError
)

var responseStateNames = [...]string{
	Unknown:           "Unknown",
	Skipped:           "Skipped",
	NullData:          "NullData",
	OK:                "OK",
	ContinueWithError: "ContinueWithError",
	StopWithError:     "StopWithError",
	StopWithOk:        "StopWithOk",
	FatalError:        "FatalError",
	UnhandledError:    "UnhandledError",
}

func (s ResponseState) String() string {
	if s >= 0 && int(s) < len(responseStateNames) {
		return responseStateNames[s]
	}
	return fmt.Sprintf("ResponseState(%d)", int(s))
}

// IsError reports whether the state carries an error.
func (s ResponseState) IsError() bool {
	switch s {
	case ContinueWithError, StopWithError, FatalError, UnhandledError:
		return true
	}
	return false
}

// IsFatal reports whether the state aborts the owning chain.
func (s ResponseState) IsFatal() bool {
	return s == FatalError || s == UnhandledError
}

// ParseResponseState parses a state name, ignoring case.
func ParseResponseState(name string) (ResponseState, error) {
	for i, n := range responseStateNames {
		if strings.EqualFold(n, name) {
			return ResponseState(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown response state %q", name)
}

func (s ResponseState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ResponseState) UnmarshalText(text []byte) error {
	v, err := ParseResponseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Response is the envelope returned by every processor.
//
// Err is non-nil exactly when State.IsError() is true; use SetState and
// SetError rather than assigning the fields directly to keep that pairing.
// ElementErrors holds per-element failures reported by collection
// processors; they never stop a chain on their own.
type Response[T any] struct {
	Data  T
	State ResponseState
	Err   error

	mu            sync.Mutex
	elementErrors map[any]error
}

// NewResponse returns a response in state Unknown carrying data.
func NewResponse[T any](data T) *Response[T] {
	return &Response[T]{Data: data}
}

// SetState sets a state. Non-error states clear the error; error states keep
// the current error or synthesize one.
func (r *Response[T]) SetState(state ResponseState) *Response[T] {
	r.State = state
	if !state.IsError() {
		r.Err = nil
	} else if r.Err == nil {
		r.Err = fmt.Errorf("processor response set to %s", state)
	}
	return r
}

// SetError records err under an error-bearing state. A non-error state is
// promoted to UnhandledError.
func (r *Response[T]) SetError(state ResponseState, err error) *Response[T] {
	if !state.IsError() {
		state = UnhandledError
	}
	if err == nil {
		err = fmt.Errorf("processor response set to %s", state)
	}
	r.State = state
	r.Err = err
	return r
}

// OK replaces the data and marks the response OK.
func (r *Response[T]) OK(data T) *Response[T] {
	r.Data = data
	return r.SetState(OK)
}

// HasError reports whether the response is in an error-bearing state.
func (r *Response[T]) HasError() bool {
	return r.State.IsError()
}

// AddElementError records a failure for a single collection member.
func (r *Response[T]) AddElementError(element any, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.elementErrors == nil {
		r.elementErrors = make(map[any]error)
	}
	r.elementErrors[element] = err
}

// ElementError returns the failure recorded for element, or nil.
func (r *Response[T]) ElementError(element any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elementErrors[element]
}

// ElementErrors returns a copy of the per-element failures.
func (r *Response[T]) ElementErrors() map[any]error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[any]error, len(r.elementErrors))
	for k, v := range r.elementErrors {
		out[k] = v
	}
	return out
}

// HasErrors reports whether any element-level failure was recorded.
func (r *Response[T]) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.elementErrors) > 0
}

// mergeElementErrors copies element failures from prev that r does not
// already carry.
func (r *Response[T]) mergeElementErrors(prev map[any]error) {
	if len(prev) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.elementErrors == nil {
		r.elementErrors = make(map[any]error, len(prev))
	}
	for k, v := range prev {
		if _, ok := r.elementErrors[k]; !ok {
			r.elementErrors[k] = v
		}
	}
}

func (r *Response[T]) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.State, r.Err)
	}
	return r.State.String()
}

// isNil reports whether v is nil, including typed nils held in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
