// Package native declares the handle-based inference engine surface that the
// rest of the module drives.
//
// Everything here mirrors the engine's C interface: handles are opaque
// integers, enums carry their C values, and status codes are returned
// rather than raised. Implementations must not be assumed thread-safe.
package native

import "fmt"

// Net is an opaque interpreter handle. The zero value is null.
type Net uintptr

// Session is an opaque session handle owned by a Net. The zero value is null.
type Session uintptr

// Tensor is an opaque tensor handle. The zero value is null.
type Tensor uintptr

// LLM is an opaque language-model handle. The zero value is null.
type LLM uintptr

// ErrorCode is a native status code.
type ErrorCode int32

// Native status codes.
const (
	NoError          ErrorCode = 0
	OutOfMemory      ErrorCode = 1
	NotSupport       ErrorCode = 2
	ComputeSizeError ErrorCode = 3
	NoExecution      ErrorCode = 4
	InvalidValue     ErrorCode = 5
	InputDataError   ErrorCode = 10
	CallBackStop     ErrorCode = 11
	TensorNotSupport ErrorCode = 20
	TensorNeedDivide ErrorCode = 21
)

// String returns the C enumerator name.
func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	case NotSupport:
		return "NOT_SUPPORT"
	case ComputeSizeError:
		return "COMPUTE_SIZE_ERROR"
	case NoExecution:
		return "NO_EXECUTION"
	case InvalidValue:
		return "INVALID_VALUE"
	case InputDataError:
		return "INPUT_DATA_ERROR"
	case CallBackStop:
		return "CALL_BACK_STOP"
	case TensorNotSupport:
		return "TENSOR_NOT_SUPPORT"
	case TensorNeedDivide:
		return "TENSOR_NEED_DIVIDE"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int32(c))
	}
}

// DimensionType is the memory layout convention of a tensor.
type DimensionType int32

// Layouts.
const (
	// TensorFlow is NHWC.
	TensorFlow DimensionType = 0
	// Caffe is NCHW.
	Caffe DimensionType = 1
	// CaffeC4 is NC4HW4, channels packed in groups of four.
	CaffeC4 DimensionType = 2
)

// Aliases used by model descriptions.
const (
	NHWC   = TensorFlow
	NCHW   = Caffe
	NC4HW4 = CaffeC4
)

func (d DimensionType) String() string {
	switch d {
	case TensorFlow:
		return "NHWC"
	case Caffe:
		return "NCHW"
	case CaffeC4:
		return "NC4HW4"
	default:
		return fmt.Sprintf("DimensionType(%d)", int32(d))
	}
}

// MapType selects the direction of a tensor map/wait.
type MapType int32

// Map directions.
const (
	MapWrite MapType = 0
	MapRead  MapType = 1
)

func (m MapType) String() string {
	if m == MapWrite {
		return "write"
	}
	return "read"
}

// TypeCode is the halide type class.
type TypeCode uint8

// Halide type classes.
const (
	TypeInt    TypeCode = 0
	TypeUInt   TypeCode = 1
	TypeFloat  TypeCode = 2
	TypeHandle TypeCode = 3
	TypeBFloat TypeCode = 4
)

// HalideType is the runtime element tag recorded in a native tensor.
type HalideType struct {
	Code  TypeCode
	Bits  uint8
	Lanes uint16
}

// Size returns the size in bytes of one element.
func (h HalideType) Size() int {
	lanes := int(h.Lanes)
	if lanes == 0 {
		lanes = 1
	}
	return (int(h.Bits) + 7) / 8 * lanes
}

func (h HalideType) String() string {
	var prefix string
	switch h.Code {
	case TypeInt:
		prefix = "int"
	case TypeUInt:
		prefix = "uint"
	case TypeFloat:
		prefix = "float"
	case TypeHandle:
		prefix = "handle"
	case TypeBFloat:
		prefix = "bfloat"
	default:
		prefix = fmt.Sprintf("code%d", h.Code)
	}
	return fmt.Sprintf("%s%d", prefix, h.Bits)
}

// Common element tags.
var (
	Float32 = HalideType{Code: TypeFloat, Bits: 32, Lanes: 1}
	Float64 = HalideType{Code: TypeFloat, Bits: 64, Lanes: 1}
	Int8    = HalideType{Code: TypeInt, Bits: 8, Lanes: 1}
	Int16   = HalideType{Code: TypeInt, Bits: 16, Lanes: 1}
	Int32   = HalideType{Code: TypeInt, Bits: 32, Lanes: 1}
	Int64   = HalideType{Code: TypeInt, Bits: 64, Lanes: 1}
	Uint8   = HalideType{Code: TypeUInt, Bits: 8, Lanes: 1}
	Uint16  = HalideType{Code: TypeUInt, Bits: 16, Lanes: 1}
)

// SessionMode is a flag passed to SetSessionMode.
type SessionMode int32

// Session modes.
const (
	SessionDebug          SessionMode = 0
	SessionRelease        SessionMode = 1
	SessionInputInside    SessionMode = 2
	SessionInputUser      SessionMode = 3
	SessionOutputInside   SessionMode = 4
	SessionOutputUser     SessionMode = 5
	SessionResizeDirect   SessionMode = 6
	SessionResizeDefer    SessionMode = 7
	SessionBackendFix     SessionMode = 8
	SessionBackendAuto    SessionMode = 9
	SessionMemoryCollect  SessionMode = 10
	SessionMemoryCache    SessionMode = 11
	SessionCodegenDisable SessionMode = 12
	SessionCodegenEnable  SessionMode = 13
	SessionResizeCheck    SessionMode = 14
	SessionResizeFix      SessionMode = 15
)

// SessionInfoCode selects the value returned by SessionInfo.
type SessionInfoCode int32

// Session info selectors.
const (
	InfoMemory       SessionInfoCode = 0
	InfoFlops        SessionInfoCode = 1
	InfoBackends     SessionInfoCode = 2
	InfoResizeStatus SessionInfoCode = 3
)

// ResizeStatus reports whether a session needs resizing before it can run.
type ResizeStatus int32

// Resize statuses.
const (
	ResizeNone       ResizeStatus = 0
	ResizeNeedMalloc ResizeStatus = 1
	ResizeNeedResize ResizeStatus = 2
)

func (r ResizeStatus) String() string {
	switch r {
	case ResizeNone:
		return "none"
	case ResizeNeedMalloc:
		return "need_malloc"
	case ResizeNeedResize:
		return "need_resize"
	default:
		return fmt.Sprintf("ResizeStatus(%d)", int32(r))
	}
}

// BackendConfig mirrors MNNBackendConfig.
type BackendConfig struct {
	Memory    int32
	Power     int32
	Precision int32
	Flags     uint64
}

// ScheduleConfig mirrors MNNScheduleConfig.
type ScheduleConfig struct {
	Type        int32
	BackupType  int32
	NumThread   int32
	Mode        int32
	SaveTensors []string
	Backend     *BackendConfig
}

// NamedTensor pairs a tensor handle with its graph name.
type NamedTensor struct {
	Name   string
	Tensor Tensor
}

// OperatorInfo describes the operator a callback fires around.
type OperatorInfo struct {
	Name  string
	Type  string
	Flops float32
}
