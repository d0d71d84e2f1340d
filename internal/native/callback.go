package native

import (
	"sync/atomic"
	"unsafe"

	pointer "github.com/mattn/go-pointer"
)

// Callback runs around one operator during a session run. Returning false
// asks the engine to skip (before) or stop (after).
type Callback func(tensors []Tensor, op OperatorInfo) bool

var liveCallbacks atomic.Int64

// SaveCallback pins cb behind a C-safe pointer for the duration of one run.
// Every call must be paired with exactly one ReleaseCallback.
func SaveCallback(cb Callback) unsafe.Pointer {
	if cb == nil {
		return nil
	}
	liveCallbacks.Add(1)
	return pointer.Save(cb)
}

// ReleaseCallback drops the pin taken by SaveCallback.
func ReleaseCallback(p unsafe.Pointer) {
	if p == nil {
		return
	}
	pointer.Unref(p)
	liveCallbacks.Add(-1)
}

// InvokeCallback is the trampoline a runtime calls for a saved callback.
// A nil or released pointer continues execution.
func InvokeCallback(p unsafe.Pointer, tensors []Tensor, op OperatorInfo) bool {
	if p == nil {
		return true
	}
	cb, ok := pointer.Restore(p).(Callback)
	if !ok || cb == nil {
		return true
	}
	return cb(tensors, op)
}

// LiveCallbacks reports how many saved callbacks have not been released.
func LiveCallbacks() int {
	return int(liveCallbacks.Load())
}
