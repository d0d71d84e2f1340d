// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine loads models and runs inference sessions over them.
//
// An Engine owns one loaded model. Sessions are created from it with a
// ScheduleConfig that picks the compute backend; their input and output
// tensors are reached by name.
//
// Example:
//
//	rt := reference.New()
//	e, err := engine.NewFromFile(rt, "model.toml")
//	if err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	s, err := e.CreateSession(engine.DefaultScheduleConfig())
//	in, err := engine.Input[float32](e, s, "data")
//	err = in.Fill(1)
//	err = e.RunSession(s)
//	out, err := engine.Output[float32](e, s, "prob")
//
// An Engine is not safe for concurrent use. Hand it to an actor.Handle to
// serve it from many goroutines.
package engine

import (
	"github.com/born-ml/mnn/internal/engine"
	"github.com/born-ml/mnn/internal/native"
	"github.com/born-ml/mnn/internal/schedule"
	"github.com/born-ml/mnn/internal/tensor"
)

// Core types.
type (
	Engine       = engine.Engine
	Session      = engine.Session
	Option       = engine.Option
	State        = engine.State
	Callback     = engine.Callback
	OperatorInfo = engine.OperatorInfo
	TensorInfo   = engine.TensorInfo
	TensorList   = engine.TensorList
	RawTensor    = engine.RawTensor
	Runtime      = native.Runtime
)

// Session states.
const (
	StateCreated   = engine.StateCreated
	StateResized   = engine.StateResized
	StateReady     = engine.StateReady
	StateRunning   = engine.StateRunning
	StateDestroyed = engine.StateDestroyed
)

// WithLogger sets the logger used for lifecycle messages.
var WithLogger = engine.WithLogger

// NewFromFile loads a model from path.
func NewFromFile(rt Runtime, path string, opts ...Option) (*Engine, error) {
	return engine.NewFromFile(rt, path, opts...)
}

// NewFromBytes loads a model held in memory.
func NewFromBytes(rt Runtime, data []byte, opts ...Option) (*Engine, error) {
	return engine.NewFromBytes(rt, data, opts...)
}

// Input returns a writable view of the named input. Inputs with dynamic
// extents must be resized first.
func Input[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceViewMut[T], error) {
	return engine.Input[T](e, s, name)
}

// InputUnresized returns the named input without checking for dynamic
// extents.
func InputUnresized[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceViewMut[T], error) {
	return engine.InputUnresized[T](e, s, name)
}

// Output returns a read-only view of the named output.
func Output[T tensor.Element](e *Engine, s *Session, name string) (tensor.DeviceView[T], error) {
	return engine.Output[T](e, s, name)
}

// TensorOf types an entry of Inputs or Outputs.
func TensorOf[T tensor.Element](i TensorInfo) (tensor.DeviceView[T], error) {
	return engine.TensorOf[T](i)
}

// Scheduling.
type (
	ScheduleConfig = schedule.ScheduleConfig
	BackendConfig  = schedule.BackendConfig
	ForwardType    = schedule.ForwardType
	MemoryMode     = schedule.MemoryMode
	PowerMode      = schedule.PowerMode
	PrecisionMode  = schedule.PrecisionMode
	SessionMode    = native.SessionMode
	ResizeStatus   = native.ResizeStatus
)

// Forward types.
const (
	ForwardCPU    = schedule.ForwardCPU
	ForwardMetal  = schedule.ForwardMetal
	ForwardOpenCL = schedule.ForwardOpenCL
	ForwardAuto   = schedule.ForwardAuto
	ForwardCoreML = schedule.ForwardCoreML
	ForwardOpenGL = schedule.ForwardOpenGL
	ForwardVulkan = schedule.ForwardVulkan
	ForwardAll    = schedule.ForwardAll
)

// Backend modes.
const (
	MemoryNormal     = schedule.MemoryNormal
	MemoryHigh       = schedule.MemoryHigh
	MemoryLow        = schedule.MemoryLow
	PowerNormal      = schedule.PowerNormal
	PowerHigh        = schedule.PowerHigh
	PowerLow         = schedule.PowerLow
	PrecisionNormal  = schedule.PrecisionNormal
	PrecisionHigh    = schedule.PrecisionHigh
	PrecisionLow     = schedule.PrecisionLow
	PrecisionLowBF16 = schedule.PrecisionLowBF16
)

// Session modes.
const (
	SessionDebug          = native.SessionDebug
	SessionRelease        = native.SessionRelease
	SessionInputInside    = native.SessionInputInside
	SessionInputUser      = native.SessionInputUser
	SessionOutputInside   = native.SessionOutputInside
	SessionOutputUser     = native.SessionOutputUser
	SessionResizeDirect   = native.SessionResizeDirect
	SessionResizeDefer    = native.SessionResizeDefer
	SessionBackendFix     = native.SessionBackendFix
	SessionBackendAuto    = native.SessionBackendAuto
	SessionMemoryCollect  = native.SessionMemoryCollect
	SessionMemoryCache    = native.SessionMemoryCache
	SessionCodegenDisable = native.SessionCodegenDisable
	SessionCodegenEnable  = native.SessionCodegenEnable
	SessionResizeCheck    = native.SessionResizeCheck
	SessionResizeFix      = native.SessionResizeFix
)

// Resize statuses.
const (
	ResizeNone       = native.ResizeNone
	ResizeNeedMalloc = native.ResizeNeedMalloc
	ResizeNeedResize = native.ResizeNeedResize
)

// DefaultScheduleConfig returns a CPU schedule with four threads.
func DefaultScheduleConfig() ScheduleConfig {
	return schedule.DefaultScheduleConfig()
}

// DefaultBackendConfig returns normal memory, power and precision modes.
func DefaultBackendConfig() BackendConfig {
	return schedule.DefaultBackendConfig()
}

// ParseForwardType parses a backend name such as "cpu" or "vulkan".
func ParseForwardType(s string) (ForwardType, error) {
	return schedule.ParseForwardType(s)
}

// ParseSessionMode parses a session mode name such as "release".
func ParseSessionMode(s string) (SessionMode, error) {
	return schedule.ParseSessionMode(s)
}
