// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package actor serves an engine from a single dedicated goroutine.
//
// New takes ownership of an Engine and returns a Handle. Any number of
// goroutines may submit work through the Handle; the work runs one item at
// a time, in submission order per caller, on a goroutine locked to its OS
// thread. A panic inside submitted work is returned as an error wrapping a
// PanicError and the actor keeps serving.
//
//	h := actor.New(e, actor.Config{})
//	defer h.Close()
//
//	probs, err := actor.Submit(h, func(r *actor.Runner) ([]float32, error) {
//	    in, err := engine.Input[float32](r.Engine(), r.Session(), "data")
//	    ...
//	    return out.Host()
//	})
package actor

import (
	"context"

	"github.com/born-ml/mnn/internal/actor"
)

// DefaultQueueSize is the queue capacity used when Config leaves it unset.
const DefaultQueueSize = actor.DefaultQueueSize

type (
	// Config configures an actor.
	Config = actor.Config
	// Handle is the client side of an actor.
	Handle = actor.Handle
	// Runner gives submitted work access to the engine and session.
	Runner = actor.Runner
)

// New starts an actor that owns e.
var New = actor.New

// Submit runs fn on the actor and returns its result.
func Submit[R any](h *Handle, fn func(*Runner) (R, error)) (R, error) {
	return actor.Submit(h, fn)
}

// SubmitContext is Submit with cancellation. A cancelled call stops
// waiting; work already queued still runs.
func SubmitContext[R any](ctx context.Context, h *Handle, fn func(*Runner) (R, error)) (R, error) {
	return actor.SubmitContext(ctx, h, fn)
}
